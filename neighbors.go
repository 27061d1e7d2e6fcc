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
	"math"
	"sort"
)

// NeighborMode selects which of the cells surrounding a cell are
// included in its neighbor set.
type NeighborMode struct {
	// Filter specifies whether only cells of category Target are
	// included. If false, all surrounding cells are included.
	Filter bool
	Target Category
}

// AllNeighbors includes every surrounding cell.
var AllNeighbors = NeighborMode{}

// CategoryFilter includes only surrounding cells of category target.
func CategoryFilter(target Category) NeighborMode {
	return NeighborMode{Filter: true, Target: target}
}

func (m NeighborMode) String() string {
	if !m.Filter {
		return "all"
	}
	return fmt.Sprintf("%s only", m.Target)
}

// Neighbors returns the sorted IDs of the cells within ringRadius
// table positions of c in both directions, excluding c itself.
// Positions outside of the table and unoccupied positions are skipped,
// so cells at the edge of the grid have fewer neighbors.
func (g *Grid) Neighbors(c *Cell, ringRadius int, mode NeighborMode) []int {
	j0, i0, ok := g.Position(c)
	if !ok {
		return nil
	}
	var ids []int
	for dj := -ringRadius; dj <= ringRadius; dj++ {
		for di := -ringRadius; di <= ringRadius; di++ {
			if dj == 0 && di == 0 {
				continue
			}
			n, ok := g.At(j0+dj, i0+di)
			if !ok {
				continue
			}
			if mode.Filter && n.Category != mode.Target {
				continue
			}
			ids = append(ids, n.ID)
		}
	}
	return sortedSet(ids)
}

// sortedSet sorts ids in place and removes duplicates.
func sortedSet(ids []int) []int {
	if len(ids) < 2 {
		return ids
	}
	sort.Ints(ids)
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// InvalidNeighborCountError is returned when a requested number of
// neighbors does not correspond to a complete square ring around a cell.
type InvalidNeighborCountError struct {
	Count int
}

func (e InvalidNeighborCountError) Error() string {
	return fmt.Sprintf("floodctx: invalid neighbor count %d; it must be (2n+1)²-1 "+
		"for a non-negative integer n (for example 8, 24, or 48)", e.Count)
}

// RingRadius returns the ring radius n for which a full square
// neighborhood contains neighborCount cells, i.e.,
// neighborCount = (2n+1)²-1.
func RingRadius(neighborCount int) (int, error) {
	if neighborCount < 0 {
		return 0, InvalidNeighborCountError{Count: neighborCount}
	}
	side := int(math.Round(math.Sqrt(float64(neighborCount + 1))))
	if side*side != neighborCount+1 || side%2 != 1 {
		return 0, InvalidNeighborCountError{Count: neighborCount}
	}
	return (side - 1) / 2, nil
}

// StatisticType specifies which surrounding cells the neighborhood
// statistic is calculated over.
type StatisticType int

const (
	// SurroundingAll uses all surrounding cells.
	SurroundingAll StatisticType = 1
	// SurroundingRed uses only surrounding cells in the Red category.
	SurroundingRed StatisticType = 2
)

// InvalidStatisticTypeError is returned for unknown statistic types.
type InvalidStatisticTypeError struct {
	Type StatisticType
}

func (e InvalidStatisticTypeError) Error() string {
	return fmt.Sprintf("floodctx: invalid statistic type %d; valid types are %d (all "+
		"surrounding cells) and %d (red surrounding cells)", int(e.Type), int(SurroundingAll), int(SurroundingRed))
}

// Mode returns the neighbor mode corresponding to s.
func (s StatisticType) Mode() (NeighborMode, error) {
	switch s {
	case SurroundingAll:
		return AllNeighbors, nil
	case SurroundingRed:
		return CategoryFilter(Red), nil
	default:
		return NeighborMode{}, InvalidStatisticTypeError{Type: s}
	}
}

// Column returns the name of the output column holding the
// neighborhood statistic of type s.
func (s StatisticType) Column() string {
	switch s {
	case SurroundingAll:
		return "surr_alt"
	case SurroundingRed:
		return "red_alt"
	default:
		return fmt.Sprintf("stat%d_alt", int(s))
	}
}
