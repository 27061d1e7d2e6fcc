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

package floodctx

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Report summarizes a neighborhood calculation.
type Report struct {
	InputFile     string
	NeighborCount int
	StatisticType int
	Mode          string

	// Cells is the number of cells read, by category.
	Cells map[string]int

	// Retained is the number of cells remaining in the domain and
	// Dropped is the number of cells that were removed. Dropped is the
	// sum of Isolated, the cells without neighbors, and
	// OutsideStudyArea.
	Retained, Dropped int
	Isolated          int
	OutsideStudyArea  int

	Cache CacheStats

	Elapsed string
}

// NewReport creates a report on the given domain, which should have
// already been run. start is the time the run started.
func NewReport(d *Domain, inputFile string, start time.Time) *Report {
	n, statType := d.Parameters()
	r := &Report{
		InputFile:        inputFile,
		NeighborCount:    n,
		StatisticType:    int(statType),
		Cells:            make(map[string]int),
		Retained:         len(d.cells),
		Dropped:          len(d.byID) - len(d.cells),
		Isolated:         d.isolated,
		OutsideStudyArea: d.outside,
		Elapsed:          time.Since(start).Round(time.Millisecond).String(),
	}
	if mode, err := statType.Mode(); err == nil {
		r.Mode = mode.String()
	}
	for _, c := range d.byID {
		r.Cells[c.Category.String()]++
	}
	if d.cache != nil {
		r.Cache = d.cache.Stats()
	}
	return r
}

// Encode writes the report to w in TOML format.
func (r *Report) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("floodctx: encoding report: %w", err)
	}
	return nil
}

// ReportOutput returns a function that writes a report on the domain
// to fileName. If fileName is empty, nothing is written.
func ReportOutput(fileName, inputFile string, start time.Time) DomainManipulator {
	return func(d *Domain) error {
		if fileName == "" {
			return nil
		}
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("floodctx: creating report file: %w", err)
		}
		if err := NewReport(d, inputFile, start).Encode(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
