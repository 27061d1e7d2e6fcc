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
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// empty marks a grid table position that is not occupied by any cell.
const empty = -1

// Grid is a two-dimensional index of cells, built from the distinct
// values of the cell centroid coordinates. Cells that are adjacent in
// the table are spatial neighbors when the input cells form a
// regular grid.
type Grid struct {
	// Longitudes and Latitudes hold the distinct centroid X and Y
	// values, in ascending order.
	Longitudes, Latitudes []float64

	lonRank, latRank map[float64]int

	// table[latRank][lonRank] holds the index in cells of the cell
	// occupying that position, or empty.
	table [][]int
	cells []*Cell
}

// NewGrid indexes the given cells by the ranks of their centroid
// coordinates. If more than one cell has the same centroid, the last
// one wins. It returns MissingCentroidError if any cell does not
// have a centroid or its centroid has a NaN or infinite coordinate.
func NewGrid(cells []*Cell) (*Grid, error) {
	lons := make(map[float64]struct{})
	lats := make(map[float64]struct{})
	for _, c := range cells {
		if !validCentroid(c.Centroid) {
			return nil, MissingCentroidError{ID: c.ID}
		}
		lons[c.Centroid.X] = struct{}{}
		lats[c.Centroid.Y] = struct{}{}
	}
	g := &Grid{cells: cells}
	g.Longitudes, g.lonRank = axis(lons)
	g.Latitudes, g.latRank = axis(lats)

	g.table = make([][]int, len(g.Latitudes))
	for j := range g.table {
		row := make([]int, len(g.Longitudes))
		for i := range row {
			row[i] = empty
		}
		g.table[j] = row
	}
	for i, c := range cells {
		g.table[g.latRank[c.Centroid.Y]][g.lonRank[c.Centroid.X]] = i
	}
	return g, nil
}

// validCentroid reports whether p is a usable index coordinate.
func validCentroid(p *geom.Point) bool {
	return p != nil && !math.IsNaN(p.X) && !math.IsNaN(p.Y) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// axis returns the sorted values in set and a map from each value to
// its position.
func axis(set map[float64]struct{}) ([]float64, map[float64]int) {
	v := make([]float64, 0, len(set))
	for x := range set {
		v = append(v, x)
	}
	sort.Float64s(v)
	rank := make(map[float64]int, len(v))
	for i, x := range v {
		rank[x] = i
	}
	return v, rank
}

// Position returns the latitude and longitude ranks of the given cell's
// centroid. ok is false if the cell has no centroid or its centroid
// was not part of the indexed cells.
func (g *Grid) Position(c *Cell) (latRank, lonRank int, ok bool) {
	if c.Centroid == nil {
		return 0, 0, false
	}
	latRank, okLat := g.latRank[c.Centroid.Y]
	lonRank, okLon := g.lonRank[c.Centroid.X]
	return latRank, lonRank, okLat && okLon
}

// At returns the cell at the given table position. ok is false if
// the position is outside of the table or is not occupied.
func (g *Grid) At(latRank, lonRank int) (c *Cell, ok bool) {
	if latRank < 0 || latRank >= len(g.table) {
		return nil, false
	}
	row := g.table[latRank]
	if lonRank < 0 || lonRank >= len(row) {
		return nil, false
	}
	i := row[lonRank]
	if i == empty {
		return nil, false
	}
	return g.cells[i], true
}
