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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
)

// WithinStudyArea returns a function that removes cells whose centroids
// are not inside of mask from the domain. Removed cells are still used
// as neighbors of the cells that remain, so it should be run after
// UnionNeighbors. If mask is nil, all cells are kept.
func WithinStudyArea(mask geom.Polygonal) DomainManipulator {
	return func(d *Domain) error {
		if mask == nil {
			return nil
		}
		index := rtree.NewTree(25, 50)
		for _, c := range d.cells {
			if c.Polygonal != nil {
				index.Insert(c)
			}
		}
		inside := make(map[*Cell]bool)
		for _, cI := range index.SearchIntersect(mask.Bounds()) {
			c := cI.(*Cell)
			if c.Centroid != nil && c.Centroid.Within(mask) != geom.Outside {
				inside[c] = true
			}
		}
		n := len(d.cells)
		d.filter(func(c *Cell) bool { return inside[c] })
		d.outside += n - len(d.cells)
		d.log().WithFields(logrus.Fields{
			"retained": len(d.cells),
			"dropped":  n - len(d.cells),
		}).Info("removed cells outside of study area")
		return nil
	}
}
