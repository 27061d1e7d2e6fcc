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
	"errors"
	"io/ioutil"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// quietLogger discards log output.
func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func ids(cells []*Cell) []int {
	o := make([]int, len(cells))
	for i, c := range cells {
		o[i] = c.ID
	}
	return o
}

func TestDomainScenario(t *testing.T) {
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, scenarioFlows), 8, SurroundingRed)
	d := &Domain{
		InitFuncs: initFuncs,
		RunFuncs:  runFuncs,
		Log:       quietLogger(),
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	c, _ := d.Cell(4)
	if c.Category != Green {
		t.Errorf("center category: have %s, want GREEN", c.Category)
	}
	if want := []int{1, 2, 3, 5, 6, 7, 8}; !reflect.DeepEqual(c.NeighborIDs, want) {
		t.Errorf("center neighbors: have %v, want %v", c.NeighborIDs, want)
	}
	if a := c.NeighborGeometry.Area(); !floats.EqualWithinAbsOrRel(a, 7, 1e-9, 1e-9) {
		t.Errorf("center neighbor area: have %g, want 7", a)
	}
	c, _ = d.Cell(0)
	if want := []int{1, 3}; !reflect.DeepEqual(c.NeighborIDs, want) {
		t.Errorf("corner neighbors: have %v, want %v", c.NeighborIDs, want)
	}
	if have := ids(d.Cells()); len(have) != 9 {
		t.Errorf("retained cells: have %v, want all 9", have)
	}
	if n, st := d.Parameters(); n != 8 || st != SurroundingRed {
		t.Errorf("parameters: have %d, %d", n, st)
	}
}

func TestDomainAllNeighbors(t *testing.T) {
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, scenarioFlows), 8, SurroundingAll)
	d := &Domain{InitFuncs: initFuncs, RunFuncs: runFuncs, Log: quietLogger()}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	want := map[int][]int{
		0: {1, 3, 4},
		2: {1, 4, 5},
		4: {0, 1, 2, 3, 5, 6, 7, 8},
		7: {3, 4, 5, 6, 8},
	}
	for id, w := range want {
		c, _ := d.Cell(id)
		if !reflect.DeepEqual(c.NeighborIDs, w) {
			t.Errorf("cell %d: have %v, want %v", id, c.NeighborIDs, w)
		}
	}
}

func TestDomainDropIsolated(t *testing.T) {
	// Only cell 8 is red, so only its neighbors have red neighbors.
	flows := func(id int) FlowValue {
		if id == 8 {
			return -40
		}
		return 40
	}
	initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, flows), 8, SurroundingRed)
	d := &Domain{InitFuncs: initFuncs, RunFuncs: runFuncs, Log: quietLogger()}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if have, want := ids(d.Cells()), []int{4, 5, 7}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	for _, c := range d.Cells() {
		if !reflect.DeepEqual(c.NeighborGeometry, geom.Polygonal(square(2, 2))) {
			t.Errorf("cell %d: have neighbor geometry %v, want cell 8", c.ID, c.NeighborGeometry)
		}
	}
	// Dropped cells can still be looked up.
	if c, ok := d.Cell(0); !ok || c.NeighborGeometry != nil {
		t.Errorf("cell 0: have %v, %v", c, ok)
	}
}

func TestDomainWorkers(t *testing.T) {
	run := func(workers int) []*Cell {
		initFuncs, runFuncs := NeighborhoodFuncs(testCells(6, 5, func(id int) FlowValue {
			return FlowValue((id*37)%100 - 50)
		}), 24, SurroundingRed)
		d := &Domain{InitFuncs: initFuncs, RunFuncs: runFuncs, Workers: workers, Log: quietLogger()}
		if err := d.Init(); err != nil {
			t.Fatal(err)
		}
		if err := d.Run(); err != nil {
			t.Fatal(err)
		}
		return d.Cells()
	}
	serial := run(1)
	parallel := run(8)
	if !reflect.DeepEqual(ids(serial), ids(parallel)) {
		t.Fatalf("retained cells differ: %v != %v", ids(serial), ids(parallel))
	}
	for i := range serial {
		if !reflect.DeepEqual(serial[i].NeighborIDs, parallel[i].NeighborIDs) {
			t.Errorf("cell %d: %v != %v", serial[i].ID, serial[i].NeighborIDs, parallel[i].NeighborIDs)
		}
		a1, a2 := serial[i].NeighborGeometry.Area(), parallel[i].NeighborGeometry.Area()
		if !floats.EqualWithinAbsOrRel(a1, a2, 1e-9, 1e-9) {
			t.Errorf("cell %d: area %g != %g", serial[i].ID, a1, a2)
		}
	}
}

func TestDomainInvalidParameters(t *testing.T) {
	for _, test := range []struct {
		n        int
		statType StatisticType
		want     interface{}
	}{
		{n: 7, statType: SurroundingRed, want: &InvalidNeighborCountError{}},
		{n: 10, statType: SurroundingAll, want: &InvalidNeighborCountError{}},
		{n: 8, statType: 3, want: &InvalidStatisticTypeError{}},
	} {
		initFuncs, runFuncs := NeighborhoodFuncs(testCells(3, 3, scenarioFlows), test.n, test.statType)
		d := &Domain{InitFuncs: initFuncs, RunFuncs: runFuncs, Log: quietLogger()}
		if err := d.Init(); err != nil {
			t.Fatal(err)
		}
		err := d.Run()
		if err == nil {
			t.Errorf("%d, %d: expected an error", test.n, test.statType)
			continue
		}
		if !errors.As(err, test.want) {
			t.Errorf("%d, %d: have error %v, want %T", test.n, test.statType, err, test.want)
		}
		for _, c := range d.Cells() {
			if c.NeighborIDs != nil {
				t.Errorf("cell %d has neighbors after failed validation", c.ID)
			}
		}
	}
}

func TestDomainMissingCentroid(t *testing.T) {
	cells := testCells(2, 2, scenarioFlows)
	cells[3].Centroid = nil
	initFuncs, _ := NeighborhoodFuncs(cells, 8, SurroundingRed)
	d := &Domain{InitFuncs: initFuncs, Log: quietLogger()}
	var e MissingCentroidError
	if err := d.Init(); !errors.As(err, &e) || e.ID != 3 {
		t.Errorf("have error %v", err)
	}
}

func TestDomainDuplicateID(t *testing.T) {
	cells := testCells(2, 1, scenarioFlows)
	cells[1].ID = 0
	d := &Domain{InitFuncs: []DomainManipulator{Load(cells)}, Log: quietLogger()}
	if err := d.Init(); err == nil {
		t.Error("expected an error for duplicate IDs")
	}
}
