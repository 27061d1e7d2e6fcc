/*
Copyright © 2020 the floodctx authors.
This file is part of floodctx.

floodctx is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

floodctx is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with floodctx.  If not, see <http://www.gnu.org/licenses/>.
*/

package floodctxutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/floodctx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to floodctx.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the shapefile of flood-change cells.
              It can be a local path, a URL, or a blob storage location
              (gs://, s3://, or file://). Zip archives containing a
              shapefile are also accepted.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "ValueField",
			usage: `
              ValueField is the name of the InputFile attribute holding the
              flow change value of each cell.`,
			defaultVal: "VALUE",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "NeighborCount",
			usage: `
              NeighborCount is the number of cells in the square ring around
              each cell that are considered its neighbors. It must equal
              (2n+1)²-1 for some n ≥ 0, for example 8, 24, or 48.`,
			shorthand:  "n",
			defaultVal: 8,
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "StatisticType",
			usage: `
              StatisticType specifies which neighbors are included in each
              cell's neighborhood. 1 includes all neighbors and 2 includes
              only neighbors whose flow decreased (RED cells).`,
			shorthand:  "t",
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the neighbor zone shapefile
              should be written. It can be a blob storage location.`,
			shorthand:  "o",
			defaultVal: "neighbors.shp",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where the statistics shapefile
              should be written. If it is empty, the directory of
              OutputFile is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "ReportFile",
			usage: `
              ReportFile is the path where a TOML summary of the run should
              be written. No summary is written if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "StudyArea",
			usage: `
              StudyArea is an optional GeoJSON file containing a Polygon or
              MultiPolygon. If it is specified, only cells with centroids
              inside it are written to the output files. All cells are
              still used as neighbors.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "DEMFile",
			usage: `
              DEMFile is the elevation raster that zonal statistics are
              calculated from.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "ZonalStats.Command",
			usage: `
              ZonalStats.Command is the command used to calculate zonal
              mean values. The zones file and raster arguments are appended
              to it.`,
			defaultVal: "rio zonalstats",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies derived columns to include in the
              statistics shapefile as a map of column names to expressions
              of the columns VALUE, cell_alt, and surr_alt or red_alt. If it
              is empty, stat_1 is calculated as the height of each cell
              relative to its neighborhood.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines used for per-cell
              calculations. If it is less than 1, the number of
              processors is used.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{neighborsCmd.Flags(), statsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FLOODCTX")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(neighborsCmd)
	Root.AddCommand(statsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("floodctx: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "floodctx",
	Short: "Flood-change cell neighborhoods.",
	Long: `floodctx classifies the cells of a flood-change grid by their change in
flow, finds the neighbors of each cell on the grid, and calculates the
union of each cell's neighbors for use in zonal statistics.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FLOODCTX_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of floodctx.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("floodctx v%s\n", floodctx.Version)
	},
	DisableAutoGenTag: true,
}

// neighborsCmd calculates the neighbor zones of each cell.
var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Calculate cell neighborhoods.",
	Long: `neighbors classifies the cells in InputFile, finds the neighbors of each
cell according to NeighborCount and StatisticType, and writes the union
of each cell's neighbors to OutputFile. Cells without any qualifying
neighbors are left out of the output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg, false)
		if err != nil {
			return err
		}
		return Run(context.Background(), cmd, c, false)
	},
	DisableAutoGenTag: true,
}

// statsCmd calculates the neighbor zones and their zonal statistics.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Calculate neighborhood elevation statistics.",
	Long: `stats does everything the neighbors command does and then calculates the
mean elevation in DEMFile of each cell and of its neighborhood, along with
any OutputVariables, and writes them to stat_<StatisticType>_<NeighborCount>_cells.shp
in OutputDir.

	Output variables:
	VALUE: The flow change of the cell
	surr_alt: Mean elevation of all neighbors (StatisticType 1)
	red_alt: Mean elevation of RED neighbors (StatisticType 2)
	cell_alt: Mean elevation of the cell
	stat_1: cell_alt minus the neighborhood elevation (default)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg, true)
		if err != nil {
			return err
		}
		return Run(context.Background(), cmd, c, true)
	},
	DisableAutoGenTag: true,
}
