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

	"github.com/ctessum/geom"
)

// Cell is a polygonal grid cell with a flood flow value.
type Cell struct {
	// ID identifies the cell. It must be unique within a Domain.
	ID int

	// Polygonal is the cell geometry. It is never modified.
	geom.Polygonal

	// Centroid is the centroid of the cell geometry. Cells without a
	// centroid cannot be indexed.
	Centroid *geom.Point

	Flow     FlowValue
	Category Category

	// NeighborIDs holds the sorted IDs of the cells surrounding this one
	// that were selected by the neighbor search.
	NeighborIDs []int

	// NeighborGeometry is the union of the geometries of the cells in
	// NeighborIDs, or nil if there are none.
	NeighborGeometry geom.Polygonal
}

// NewCell creates a new cell with the given geometry and flow value and
// calculates its centroid. Degenerate geometries, whose centroids are
// not finite, are left without a centroid.
func NewCell(id int, g geom.Polygonal, flow FlowValue) *Cell {
	c := &Cell{
		ID:        id,
		Polygonal: g,
		Flow:      flow,
	}
	if g != nil {
		if p := g.Centroid(); validCentroid(&p) {
			c.Centroid = &p
		}
	}
	return c
}

func (c *Cell) String() string {
	return fmt.Sprintf("cell %d (%s, flow=%g)", c.ID, c.Category, float64(c.Flow))
}

// MissingCentroidError is returned when a cell that does not have
// a centroid is indexed.
type MissingCentroidError struct {
	ID int
}

func (e MissingCentroidError) Error() string {
	return fmt.Sprintf("floodctx: cell %d does not have a centroid", e.ID)
}
