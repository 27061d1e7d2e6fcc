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
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/floodctx"
	"github.com/spatialmodel/floodctx/cloud"
	"github.com/spf13/cast"
)

// Config holds the settings for a neighborhood calculation.
type Config struct {
	// InputFile is the flood-change shapefile. It may be a URL
	// or blob storage path.
	InputFile string

	// ValueField is the attribute of InputFile holding the flow value.
	ValueField string

	NeighborCount int
	StatisticType floodctx.StatisticType

	// OutputFile is the neighbor zone shapefile.
	OutputFile string

	// OutputDir is the directory where the statistics shapefile is written.
	OutputDir string

	LogFile    string
	ReportFile string

	// StudyArea is an optional GeoJSON file with the polygon that
	// output cells must lie within.
	StudyArea string

	// DEMFile is the elevation raster used for zonal statistics.
	DEMFile string

	// ZonalStatsCommand is the command used to calculate zonal statistics.
	ZonalStatsCommand []string

	// OutputVariables are the derived statistics columns.
	OutputVariables map[string]string

	Workers int
}

// LoadConfig reads and checks a Config from cfg. If stats is true,
// the settings needed for raster statistics are checked as well.
func LoadConfig(cfg *viper.Viper, stats bool) (*Config, error) {
	c := &Config{
		InputFile:  os.ExpandEnv(cfg.GetString("InputFile")),
		ValueField: os.ExpandEnv(cfg.GetString("ValueField")),
		ReportFile: os.ExpandEnv(cfg.GetString("ReportFile")),
		StudyArea:  os.ExpandEnv(cfg.GetString("StudyArea")),
		Workers:    cfg.GetInt("Workers"),
	}
	if c.InputFile == "" {
		return nil, fmt.Errorf(`floodctxutil: you need to specify an input file configuration variable (for example: InputFile="cells.shp")`)
	}
	if c.ValueField == "" {
		return nil, fmt.Errorf("floodctxutil: the ValueField configuration variable is empty")
	}
	var err error
	if c.NeighborCount, err = checkNeighborCount(cfg.Get("NeighborCount")); err != nil {
		return nil, err
	}
	if c.StatisticType, err = checkStatisticType(cfg.Get("StatisticType")); err != nil {
		return nil, err
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)
	if !stats {
		return c, nil
	}

	if c.OutputDir, err = checkOutputDir(cfg.GetString("OutputDir"), c.OutputFile); err != nil {
		return nil, err
	}
	if c.DEMFile = os.ExpandEnv(cfg.GetString("DEMFile")); c.DEMFile == "" {
		return nil, fmt.Errorf("floodctxutil: you need to specify an elevation raster in the DEMFile configuration variable")
	}
	if c.ZonalStatsCommand, err = commandArgs(cfg.Get("ZonalStats.Command")); err != nil {
		return nil, fmt.Errorf("floodctxutil: parsing ZonalStats.Command: %w", err)
	}
	if len(c.ZonalStatsCommand) == 0 {
		return nil, fmt.Errorf("floodctxutil: the ZonalStats.Command configuration variable is empty")
	}
	vars, err := getStringMapString("OutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	if len(vars) == 0 {
		vars = floodctx.DefaultOutputVariables(c.StatisticType)
	}
	c.OutputVariables = checkOutputVars(vars)
	return c, nil
}

// checkNeighborCount makes sure the neighbor count corresponds to a
// square ring of cells.
func checkNeighborCount(i interface{}) (int, error) {
	n, err := cast.ToIntE(i)
	if err != nil {
		return 0, fmt.Errorf("floodctxutil: parsing NeighborCount: %w", err)
	}
	if _, err := floodctx.RingRadius(n); err != nil {
		return 0, err
	}
	return n, nil
}

func checkStatisticType(i interface{}) (floodctx.StatisticType, error) {
	t, err := cast.ToIntE(i)
	if err != nil {
		return 0, fmt.Errorf("floodctxutil: parsing StatisticType: %w", err)
	}
	s := floodctx.StatisticType(t)
	if _, err := s.Mode(); err != nil {
		return 0, err
	}
	return s, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`floodctxutil: you need to specify an output file configuration variable (for example: OutputFile="neighbors.shp")`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		if err := checkBucket(f); err != nil {
			return f, fmt.Errorf("floodctxutil: error when checking OutputFile location: %w", err)
		}
		return f, nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("floodctxutil: the OutputFile directory doesn't exist: %w", err)
	}
	return f, nil
}

// checkOutputDir expands any environment variables in the output
// directory and makes sure it exists. If dir is empty, the directory
// of outputFile is used.
func checkOutputDir(dir, outputFile string) (string, error) {
	dir = os.ExpandEnv(dir)
	if dir == "" {
		if cloud.IsBlob(outputFile) {
			return outputFile[:strings.LastIndex(outputFile, "/")], nil
		}
		return filepath.Dir(outputFile), nil
	}
	if cloud.IsBlob(dir) {
		if err := checkBucket(dir); err != nil {
			return dir, fmt.Errorf("floodctxutil: error when checking OutputDir location: %w", err)
		}
		return strings.TrimSuffix(dir, "/"), nil
	}
	if fi, err := os.Stat(dir); err != nil {
		return dir, fmt.Errorf("floodctxutil: the OutputDir directory doesn't exist: %w", err)
	} else if !fi.IsDir() {
		return dir, fmt.Errorf("floodctxutil: OutputDir %s is not a directory", dir)
	}
	return dir, nil
}

// checkBucket makes sure the bucket of blob path p can be opened.
func checkBucket(p string) error {
	u, err := url.Parse(p)
	if err != nil {
		return err
	}
	b, err := cloud.OpenBucket(context.TODO(), u.Scheme+"://"+u.Host)
	if err != nil {
		return err
	}
	return b.Close()
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// commandArgs splits a command given either as a single string or as
// a list of arguments.
func commandArgs(i interface{}) ([]string, error) {
	if s, ok := i.(string); ok {
		return strings.Fields(os.ExpandEnv(s)), nil
	}
	args, err := cast.ToStringSliceE(i)
	if err != nil {
		return nil, err
	}
	for j, a := range args {
		args[j] = os.ExpandEnv(a)
	}
	return args, nil
}

// getStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, fmt.Errorf("floodctxutil: parsing %s: %w", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("floodctxutil: invalid type for variable %s: %#v", varName, i)
	}
}

// parseStudyArea returns the study area polygon represented by the
// given GeoJSON file, or nil if fileName is empty.
func parseStudyArea(fileName string) (geom.Polygonal, error) {
	if fileName == "" {
		return nil, nil
	}
	b, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("floodctxutil: reading study area file: %w", err)
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("floodctxutil: decoding StudyArea: %w", err)
	}
	switch a := g.(type) {
	case geom.Polygon:
		return a, nil
	case geom.MultiPolygon:
		return a, nil
	default:
		return nil, fmt.Errorf("floodctxutil: invalid study area geometry type %T", g)
	}
}
