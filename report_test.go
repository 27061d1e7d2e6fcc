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
	"bytes"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
)

func TestReport(t *testing.T) {
	d := runScenario(t, SurroundingRed)
	r := NewReport(d, "cells.shp", time.Now())
	if r.Cells["RED"] != 7 || r.Cells["GREEN"] != 1 || r.Cells["YELLOW"] != 1 {
		t.Errorf("cells: have %v", r.Cells)
	}
	if r.Retained != 9 || r.Dropped != 0 || r.Isolated != 0 || r.OutsideStudyArea != 0 {
		t.Errorf("have %d retained and %d dropped", r.Retained, r.Dropped)
	}
	if r.Mode != "RED only" {
		t.Errorf("mode: have %s", r.Mode)
	}

	b := new(bytes.Buffer)
	if err := r.Encode(b); err != nil {
		t.Fatal(err)
	}
	var have Report
	if _, err := toml.Decode(b.String(), &have); err != nil {
		t.Fatal(err)
	}
	if have.NeighborCount != 8 || have.StatisticType != 2 || have.InputFile != "cells.shp" {
		t.Errorf("decoded report: have %+v", have)
	}
	if have.Cache.Unions != r.Cache.Unions || r.Cache.Unions == 0 {
		t.Errorf("cache unions: have %d, want %d", have.Cache.Unions, r.Cache.Unions)
	}
}

func TestReportDropped(t *testing.T) {
	// Only cell 8 is red, so cells 4, 5, and 7 have neighbors. The
	// mask covers the middle column of cells.
	flows := func(id int) FlowValue {
		if id == 8 {
			return -40
		}
		return 40
	}
	mask := geom.Polygon{{{X: 0.9, Y: -0.1}, {X: 2.1, Y: -0.1}, {X: 2.1, Y: 3.1}, {X: 0.9, Y: 3.1}, {X: 0.9, Y: -0.1}}}
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, flows), 8, SurroundingRed)
	d := &Domain{
		InitFuncs: initFuncs,
		RunFuncs:  append(runFuncs, WithinStudyArea(mask)),
		Log:       quietLogger(),
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	r := NewReport(d, "cells.shp", time.Now())
	if r.Retained != 2 || r.Dropped != 7 || r.Isolated != 6 || r.OutsideStudyArea != 1 {
		t.Errorf("have %d retained, %d dropped, %d isolated, and %d outside",
			r.Retained, r.Dropped, r.Isolated, r.OutsideStudyArea)
	}
}
