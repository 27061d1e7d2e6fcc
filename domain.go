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

// Package floodctx calculates the neighborhood context of the cells of a
// flood-change grid: for each cell, the union of the geometries of the
// cells surrounding it, optionally limited to high-risk cells.
package floodctx

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Version gives the version number.
const Version = "1.0.0"

// DomainManipulator is a function that operates on an entire domain.
type DomainManipulator func(d *Domain) error

// CellManipulator is a function that operates on a single cell.
type CellManipulator func(d *Domain, c *Cell) error

// Domain holds the cells of a flood-change grid and the functions that
// calculate their neighborhoods.
type Domain struct {
	// InitFuncs are functions to be called in the given order
	// at the beginning of the run.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order
	// after InitFuncs have been called.
	RunFuncs []DomainManipulator

	// Workers is the number of goroutines used for per-cell
	// calculations. If it is less than one, runtime.GOMAXPROCS(0) is used.
	Workers int

	// Log receives progress messages. If it is nil,
	// logrus.StandardLogger() is used.
	Log logrus.FieldLogger

	cells []*Cell
	byID  map[int]*Cell
	grid  *Grid
	cache *UnionCache

	// These are set by FindNeighbors.
	neighborCount int
	statType      StatisticType

	// isolated and outside count the cells removed by DropIsolated
	// and WithinStudyArea.
	isolated, outside int
}

// Init initializes the domain by running d.InitFuncs.
func (d *Domain) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return fmt.Errorf("floodctx: problem initializing domain: %w", err)
		}
	}
	return nil
}

// Run calculates the cell neighborhoods by running d.RunFuncs.
func (d *Domain) Run() error {
	for _, f := range d.RunFuncs {
		if err := f(d); err != nil {
			return fmt.Errorf("floodctx: problem running neighborhood calculations: %w", err)
		}
	}
	return nil
}

func (d *Domain) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Cells returns the cells currently in the domain. After DropIsolated
// has been run, only cells with neighbor geometry remain.
func (d *Domain) Cells() []*Cell { return d.cells }

// Cell returns the cell with the given ID.
func (d *Domain) Cell(id int) (*Cell, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// Grid returns the coordinate index of the domain, or nil if
// IndexCells has not been run.
func (d *Domain) Grid() *Grid { return d.grid }

// UnionCache returns the cache used to calculate neighbor geometries,
// or nil if UnionNeighbors has not been run.
func (d *Domain) UnionCache() *UnionCache { return d.cache }

// Parameters returns the neighbor count and statistic type that
// FindNeighbors was run with.
func (d *Domain) Parameters() (neighborCount int, statType StatisticType) {
	return d.neighborCount, d.statType
}

// Load returns a function that adds cells to the domain. Cell IDs
// must be unique.
func Load(cells []*Cell) DomainManipulator {
	return func(d *Domain) error {
		d.cells = make([]*Cell, 0, len(cells))
		d.byID = make(map[int]*Cell, len(cells))
		for _, c := range cells {
			if _, ok := d.byID[c.ID]; ok {
				return fmt.Errorf("floodctx: duplicate cell ID %d", c.ID)
			}
			d.byID[c.ID] = c
			d.cells = append(d.cells, c)
		}
		d.log().WithField("cells", len(d.cells)).Info("loaded cells")
		return nil
	}
}

// ClassifyCells returns a function that sets the category of every cell
// based on its flow value.
func ClassifyCells() DomainManipulator {
	return func(d *Domain) error {
		counts := make(map[Category]int)
		flows := make([]float64, 0, len(d.cells))
		for _, c := range d.cells {
			c.Category = Classify(c.Flow)
			counts[c.Category]++
			if !math.IsNaN(float64(c.Flow)) {
				flows = append(flows, float64(c.Flow))
			}
		}
		fields := logrus.Fields{
			"green":  counts[Green],
			"red":    counts[Red],
			"yellow": counts[Yellow],
		}
		if len(flows) > 0 {
			fields["min"] = floats.Min(flows)
			fields["max"] = floats.Max(flows)
			fields["mean"] = floats.Sum(flows) / float64(len(flows))
		}
		d.log().WithFields(fields).Info("classified cells")
		return nil
	}
}

// IndexCells returns a function that builds the coordinate index of
// the domain.
func IndexCells() DomainManipulator {
	return func(d *Domain) error {
		g, err := NewGrid(d.cells)
		if err != nil {
			return err
		}
		d.grid = g
		d.log().WithFields(logrus.Fields{
			"columns": len(g.Longitudes),
			"rows":    len(g.Latitudes),
		}).Info("indexed cells")
		return nil
	}
}

// FindNeighbors returns a function that finds the neighbors of every
// cell. neighborCount is the number of cells in a full neighborhood
// and must be of the form (2n+1)²-1. statType selects the surrounding
// cells that are included. Both arguments are checked before any
// neighbors are searched for.
func FindNeighbors(neighborCount int, statType StatisticType) DomainManipulator {
	return func(d *Domain) error {
		radius, err := RingRadius(neighborCount)
		if err != nil {
			return err
		}
		mode, err := statType.Mode()
		if err != nil {
			return err
		}
		if d.grid == nil {
			return fmt.Errorf("floodctx: cells must be indexed before finding neighbors")
		}
		d.neighborCount, d.statType = neighborCount, statType
		d.log().WithFields(logrus.Fields{
			"radius": radius,
			"mode":   mode.String(),
		}).Info("finding neighbors")
		return d.Calculations(func(d *Domain, c *Cell) error {
			c.NeighborIDs = d.sanitize(c, d.grid.Neighbors(c, radius, mode))
			return nil
		})
	}
}

// sanitize removes IDs that do not belong to a cell in the domain or
// that belong to c itself.
func (d *Domain) sanitize(c *Cell, ids []int) []int {
	out := ids[:0]
	for _, id := range ids {
		if _, ok := d.byID[id]; !ok || id == c.ID {
			continue
		}
		out = append(out, id)
	}
	return out
}

// UnionNeighbors returns a function that sets the neighbor geometry of
// every cell to the union of the geometries of its neighbors, using
// union to combine geometries. If union is nil, PolygonUnion is used.
func UnionNeighbors(union UnionFunc) DomainManipulator {
	return func(d *Domain) error {
		d.cache = NewUnionCache(func(id int) (geom.Polygonal, bool) {
			c, ok := d.byID[id]
			if !ok || c.Polygonal == nil {
				return nil, false
			}
			return c.Polygonal, true
		}, union)
		err := d.Calculations(func(d *Domain, c *Cell) error {
			g, err := d.cache.UnionOf(c.NeighborIDs)
			if err != nil {
				return err
			}
			c.NeighborGeometry = g
			return nil
		})
		if err != nil {
			return err
		}
		s := d.cache.Stats()
		d.log().WithFields(logrus.Fields{
			"requests": s.Requests,
			"hits":     s.Hits,
			"unions":   s.Unions,
		}).Info("calculated neighbor geometry")
		return nil
	}
}

// DropIsolated returns a function that removes cells without neighbor
// geometry from the domain.
func DropIsolated() DomainManipulator {
	return func(d *Domain) error {
		n := len(d.cells)
		d.filter(func(c *Cell) bool { return c.NeighborGeometry != nil })
		d.isolated += n - len(d.cells)
		d.log().WithFields(logrus.Fields{
			"retained": len(d.cells),
			"dropped":  n - len(d.cells),
		}).Info("removed cells without neighbors")
		return nil
	}
}

// filter keeps only the cells for which keep returns true. Removed
// cells remain available through Cell so that they can still be
// looked up as neighbors.
func (d *Domain) filter(keep func(*Cell) bool) {
	out := make([]*Cell, 0, len(d.cells))
	for _, c := range d.cells {
		if keep(c) {
			out = append(out, c)
		}
	}
	d.cells = out
}

// Calculations runs the calculators on every cell in the domain
// concurrently. Each cell is handled by a single goroutine. The first
// error encountered is returned.
func (d *Domain) Calculations(calculators ...CellManipulator) error {
	nprocs := d.Workers
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for ii := pp; ii < len(d.cells); ii += nprocs {
				c := d.cells[ii]
				for _, f := range calculators {
					if err := f(d, c); err != nil {
						errOnce.Do(func() { firstErr = err })
						return
					}
				}
			}
		}(pp)
	}
	wg.Wait()
	return firstErr
}

// NeighborhoodFuncs returns the default InitFuncs and RunFuncs for
// calculating the neighborhoods of the given cells.
func NeighborhoodFuncs(cells []*Cell, neighborCount int, statType StatisticType) (initFuncs, runFuncs []DomainManipulator) {
	initFuncs = []DomainManipulator{
		Load(cells),
		ClassifyCells(),
		IndexCells(),
	}
	runFuncs = []DomainManipulator{
		FindNeighbors(neighborCount, statType),
		UnionNeighbors(nil),
		DropIsolated(),
	}
	return
}
