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
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func TestWithinStudyArea(t *testing.T) {
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, scenarioFlows), 8, SurroundingAll)
	// The mask covers the left column of cells.
	mask := geom.Polygon{{{X: -0.1, Y: -0.1}, {X: 1.1, Y: -0.1}, {X: 1.1, Y: 3.1}, {X: -0.1, Y: 3.1}, {X: -0.1, Y: -0.1}}}
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
	have := ids(d.Cells())
	if want := []int{0, 3, 6}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	// Cells outside of the study area are still neighbors.
	c, _ := d.Cell(3)
	if want := []int{0, 1, 4, 6, 7}; !reflect.DeepEqual(c.NeighborIDs, want) {
		t.Errorf("neighbors: have %v, want %v", c.NeighborIDs, want)
	}
}

func TestWithinStudyAreaNil(t *testing.T) {
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(2, 2, scenarioFlows), 8, SurroundingAll)
	d := &Domain{
		InitFuncs: initFuncs,
		RunFuncs:  append(runFuncs, WithinStudyArea(nil)),
		Log:       quietLogger(),
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if len(d.Cells()) != 4 {
		t.Errorf("have %d cells, want 4", len(d.Cells()))
	}
}
