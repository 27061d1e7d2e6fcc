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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/floodctx"
	"github.com/spatialmodel/floodctx/cloud"
	"github.com/spf13/cobra"
)

// Run calculates the neighborhoods of the cells described by c and
// writes them to c.OutputFile. If stats is true, zonal statistics are
// also calculated for each neighborhood and written to c.OutputDir.
//
// Log messages are written to the output of cmd and to c.LogFile.
// Remote inputs are downloaded before the calculation starts and
// remote outputs are uploaded after it finishes.
func Run(ctx context.Context, cmd *cobra.Command, c *Config, stats bool) error {
	start := time.Now()

	var upload uploader
	defer upload.cleanup()

	logFileName := upload.maybeUpload(c.LogFile)
	if upload.err != nil {
		return upload.err
	}
	logFile, err := os.Create(logFileName)
	if err != nil {
		return fmt.Errorf("floodctx: problem creating log file: %w", err)
	}
	defer logFile.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), logFile)
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}

	dl := downloader{log: log}
	defer dl.cleanup()

	inputFile, err := dl.maybeDownload(ctx, c.InputFile)
	if err != nil {
		return err
	}
	log.WithField("file", c.InputFile).Info("reading cells")
	cells, err := floodctx.ReadCells(inputFile, c.ValueField)
	if err != nil {
		return err
	}
	prj, err := floodctx.ReadProjection(inputFile)
	if err != nil {
		return err
	}

	studyAreaFile, err := dl.maybeDownload(ctx, c.StudyArea)
	if err != nil {
		return err
	}
	studyArea, err := parseStudyArea(studyAreaFile)
	if err != nil {
		return err
	}

	initFuncs, runFuncs := floodctx.NeighborhoodFuncs(cells, c.NeighborCount, c.StatisticType)
	if studyArea != nil {
		runFuncs = append(runFuncs, floodctx.WithinStudyArea(studyArea))
	}
	runFuncs = append(runFuncs, floodctx.NeighborOutput(upload.maybeUpload(c.OutputFile), prj))

	if stats {
		demFile, err := dl.maybeDownload(ctx, c.DEMFile)
		if err != nil {
			return err
		}
		zs := RasterioZonalStats{Command: c.ZonalStatsCommand, Log: log}
		dir := c.OutputDir
		if cloud.IsBlob(dir) {
			name := floodctx.StatisticsFileName(c.StatisticType, c.NeighborCount)
			dir = filepath.Dir(upload.maybeUpload(strings.TrimSuffix(dir, "/") + "/" + name))
		}
		runFuncs = append(runFuncs, floodctx.StatisticsOutput(ctx, zs, demFile, c.OutputVariables, dir, prj))
	}
	runFuncs = append(runFuncs, floodctx.ReportOutput(upload.maybeUpload(c.ReportFile), c.InputFile, start))
	if upload.err != nil {
		return upload.err
	}

	d := &floodctx.Domain{
		InitFuncs: initFuncs,
		RunFuncs:  runFuncs,
		Workers:   c.Workers,
		Log:       log,
	}
	if err := d.Init(); err != nil {
		return err
	}
	if err := d.Run(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"cells":   len(d.Cells()),
		"elapsed": time.Since(start),
	}).Info("floodctx completed successfully")

	if err := logFile.Close(); err != nil {
		return err
	}
	return upload.uploadOutput(ctx)
}
