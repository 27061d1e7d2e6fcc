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
)

func TestRingRadius(t *testing.T) {
	for n, want := range map[int]int{0: 0, 8: 1, 24: 2, 48: 3, 80: 4} {
		r, err := RingRadius(n)
		if err != nil {
			t.Errorf("%d: %v", n, err)
			continue
		}
		if r != want {
			t.Errorf("%d: have %d, want %d", n, r, want)
		}
	}
	for _, n := range []int{-1, 3, 7, 10, 15, 35, 99} {
		_, err := RingRadius(n)
		if want := (InvalidNeighborCountError{Count: n}); err != want {
			t.Errorf("%d: have error %v, want %v", n, err, want)
		}
	}
}

func TestStatisticTypeMode(t *testing.T) {
	m, err := SurroundingAll.Mode()
	if err != nil || m != AllNeighbors {
		t.Errorf("type 1: have %v (%v), want %v", m, err, AllNeighbors)
	}
	m, err = SurroundingRed.Mode()
	if err != nil || m != CategoryFilter(Red) {
		t.Errorf("type 2: have %v (%v), want %v", m, err, CategoryFilter(Red))
	}
	if _, err = StatisticType(3).Mode(); err != (InvalidStatisticTypeError{Type: 3}) {
		t.Errorf("type 3: have %v", err)
	}
	if SurroundingAll.Column() != "surr_alt" || SurroundingRed.Column() != "red_alt" {
		t.Errorf("have columns %s and %s", SurroundingAll.Column(), SurroundingRed.Column())
	}
}

func TestNeighbors(t *testing.T) {
	cells := testCells(3, 3, scenarioFlows)
	for _, c := range cells {
		c.Category = Classify(c.Flow)
	}
	g, err := NewGrid(cells)
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name   string
		cell   int
		radius int
		mode   NeighborMode
		want   []int
	}{
		{
			name: "center all", cell: 4, radius: 1, mode: AllNeighbors,
			want: []int{0, 1, 2, 3, 5, 6, 7, 8},
		},
		{
			name: "center red", cell: 4, radius: 1, mode: CategoryFilter(Red),
			want: []int{1, 2, 3, 5, 6, 7, 8},
		},
		{
			name: "corner all", cell: 0, radius: 1, mode: AllNeighbors,
			want: []int{1, 3, 4},
		},
		{
			name: "corner red", cell: 0, radius: 1, mode: CategoryFilter(Red),
			want: []int{1, 3},
		},
		{
			name: "corner green", cell: 8, radius: 1, mode: CategoryFilter(Green),
			want: []int{4},
		},
		{
			name: "edge truncated", cell: 0, radius: 2, mode: AllNeighbors,
			want: []int{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name: "radius zero", cell: 4, radius: 0, mode: AllNeighbors,
			want: nil,
		},
		{
			name: "edge yellow", cell: 1, radius: 1, mode: CategoryFilter(Yellow),
			want: []int{0},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			have := g.Neighbors(cells[test.cell], test.radius, test.mode)
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}

func TestSortedSet(t *testing.T) {
	have := sortedSet([]int{5, 1, 3, 1, 5, 2})
	want := []int{1, 2, 3, 5}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}
