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
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"gonum.org/v1/gonum/floats"
)

// areaStats is a ZonalStatistics whose mean value is the area
// of each zone.
type areaStats struct{}

func (areaStats) Mean(_ context.Context, zones []geom.Polygonal, _ string) ([]float64, error) {
	o := make([]float64, len(zones))
	for i, z := range zones {
		o[i] = z.Area()
	}
	return o, nil
}

type failingStats struct{}

func (failingStats) Mean(context.Context, []geom.Polygonal, string) ([]float64, error) {
	return nil, fmt.Errorf("no raster")
}

func runScenario(t *testing.T, statType StatisticType) *Domain {
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, scenarioFlows), 8, statType)
	d := &Domain{InitFuncs: initFuncs, RunFuncs: runFuncs, Log: quietLogger()}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewStatistics(t *testing.T) {
	d := runScenario(t, SurroundingRed)
	s, err := NewStatistics(context.Background(), d, areaStats{}, "dem.tif", nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"VALUE", "red_alt", "cell_alt", "stat_1"}; !reflect.DeepEqual(s.Columns, want) {
		t.Errorf("columns: have %v, want %v", s.Columns, want)
	}
	for i, c := range s.Cells {
		if s.Values["cell_alt"][i] != 1 {
			t.Errorf("cell %d: cell_alt: have %g, want 1", c.ID, s.Values["cell_alt"][i])
		}
		want := 1 - s.Values["red_alt"][i]
		if !floats.EqualWithinAbsOrRel(s.Values["stat_1"][i], want, 1e-9, 1e-9) {
			t.Errorf("cell %d: stat_1: have %g, want %g", c.ID, s.Values["stat_1"][i], want)
		}
		if c.ID == 4 {
			if !floats.EqualWithinAbsOrRel(s.Values["red_alt"][i], 7, 1e-9, 1e-9) {
				t.Errorf("cell 4: red_alt: have %g, want 7", s.Values["red_alt"][i])
			}
			if s.Values["VALUE"][i] != 50 {
				t.Errorf("cell 4: VALUE: have %g, want 50", s.Values["VALUE"][i])
			}
		}
	}
	if have, want := s.FileName("out"), filepath.Join("out", "stat_2_8_cells.shp"); have != want {
		t.Errorf("file name: have %s, want %s", have, want)
	}
}

func TestNewStatisticsCustomVariables(t *testing.T) {
	d := runScenario(t, SurroundingAll)
	s, err := NewStatistics(context.Background(), d, areaStats{}, "dem.tif", map[string]string{
		"rel":    "cell_alt - surr_alt",
		"absrel": "abs(cell_alt - surr_alt) * VALUE",
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"VALUE", "surr_alt", "cell_alt", "absrel", "rel"}; !reflect.DeepEqual(s.Columns, want) {
		t.Errorf("columns: have %v, want %v", s.Columns, want)
	}
	for i, c := range s.Cells {
		if c.ID == 4 {
			if have := s.Values["rel"][i]; !floats.EqualWithinAbsOrRel(have, -7, 1e-9, 1e-9) {
				t.Errorf("rel: have %g, want -7", have)
			}
			if have := s.Values["absrel"][i]; !floats.EqualWithinAbsOrRel(have, 350, 1e-9, 1e-9) {
				t.Errorf("absrel: have %g, want 350", have)
			}
		}
	}
}

func TestNewStatisticsErrors(t *testing.T) {
	d := runScenario(t, SurroundingRed)
	for name, vars := range map[string]map[string]string{
		"long name":    {"relative_height": "cell_alt"},
		"reserved":     {"cell_alt": "VALUE"},
		"unknown var":  {"x": "cell_alt - surr_alt"},
		"syntax error": {"x": "cell_alt - "},
	} {
		if _, err := NewStatistics(context.Background(), d, areaStats{}, "dem.tif", vars); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := NewStatistics(context.Background(), d, failingStats{}, "dem.tif", nil); err == nil {
		t.Error("expected a zonal statistics error")
	}
}

func TestStatisticsOutput(t *testing.T) {
	dir, err := ioutil.TempDir("", "floodctx")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	d := runScenario(t, SurroundingRed)
	if err := StatisticsOutput(context.Background(), areaStats{}, "dem.tif", nil, dir, testPrj)(d); err != nil {
		t.Fatal(err)
	}
	r, err := shp.NewDecoder(filepath.Join(dir, "stat_2_8_cells.shp"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var n int
	for {
		_, fields, more := r.DecodeRowFields("celltype", "stat_1")
		if !more {
			break
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(fields["stat_1"]), 64); err != nil {
			t.Errorf("record %d: %v", n, err)
		}
		n++
	}
	if err := r.Error(); err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Errorf("have %d records, want 9", n)
	}
}
