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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// ReadCells reads grid cells from a polygon shapefile. The flow value of
// each cell is read from the attribute column valueField, and the ID
// of each cell is its record number, starting at zero.
func ReadCells(fileName, valueField string) ([]*Cell, error) {
	fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".shp"
	f, err := shp.NewDecoder(fileName)
	if err != nil {
		return nil, fmt.Errorf("floodctx: opening cell shapefile '%s': %w", fileName, err)
	}
	defer f.Close()

	var cells []*Cell
	for i := 0; ; i++ {
		g, fields, more := f.DecodeRowFields(valueField)
		if !more {
			break
		}
		if err := f.Error(); err != nil {
			return nil, fmt.Errorf("floodctx: reading cell shapefile '%s': %w", fileName, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("floodctx: cell %d in '%s' has geometry type %T; it needs to be a polygon", i, fileName, g)
		}
		v, err := s2f(fields[valueField])
		if err != nil {
			return nil, fmt.Errorf("floodctx: cell %d in '%s': invalid %s value: %w", i, fileName, valueField, err)
		}
		cells = append(cells, NewCell(i, p, FlowValue(v)))
	}
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("floodctx: reading cell shapefile '%s': %w", fileName, err)
	}
	return cells, nil
}

// s2f parses a shapefile attribute as a float. Blank attributes are
// returned as NaN.
func s2f(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "*") == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadProjection returns the contents of the .prj file that accompanies
// the given shapefile, or an empty string if there isn't one.
func ReadProjection(fileName string) (string, error) {
	prj := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".prj"
	b, err := ioutil.ReadFile(prj)
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("floodctx: reading projection file: %w", err)
	}
	return string(b), nil
}

// writeProjection writes the projection prj next to the given shapefile.
// Nothing is written if prj is empty.
func writeProjection(fileName, prj string) error {
	if prj == "" {
		return nil
	}
	f, err := os.Create(strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".prj")
	if err != nil {
		return fmt.Errorf("error creating output prj file: %w", err)
	}
	if _, err := fmt.Fprint(f, prj); err != nil {
		f.Close()
		return fmt.Errorf("error writing output prj file: %w", err)
	}
	return f.Close()
}

// polygon converts g to a single polygon so that it can be written
// to a shapefile.
func polygon(g geom.Polygonal) geom.Polygon {
	if p, ok := g.(geom.Polygon); ok {
		return p
	}
	var o geom.Polygon
	for _, p := range g.Polygons() {
		o = append(o, p...)
	}
	return o
}

// NeighborOutput returns a function that writes the neighbor geometry
// of each cell in the domain to the shapefile fileName, along with
// the cell ID, flow value, centroid, category, and number of neighbors.
// prj is the projection of the output; if it is not empty a .prj file
// is also written.
func NeighborOutput(fileName, prj string) DomainManipulator {
	return func(d *Domain) error {
		name := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".shp"
		fields := []goshp.Field{
			goshp.NumberField("id", 10),
			goshp.FloatField("VALUE", 14, 8),
			goshp.FloatField("longitude", 19, 11),
			goshp.FloatField("latitude", 19, 11),
			goshp.StringField("celltype", 6),
			goshp.NumberField("n_nbrs", 6),
		}
		e, err := shp.NewEncoderFromFields(name, goshp.POLYGON, fields...)
		if err != nil {
			return fmt.Errorf("error creating output shapefile: %w", err)
		}
		for _, c := range d.cells {
			if c.NeighborGeometry == nil {
				continue
			}
			err = e.EncodeFields(polygon(c.NeighborGeometry),
				c.ID, float64(c.Flow), c.Centroid.X, c.Centroid.Y,
				c.Category.String(), len(c.NeighborIDs))
			if err != nil {
				e.Close()
				return fmt.Errorf("error writing output shapefile: %w", err)
			}
		}
		e.Close()
		if err := writeProjection(name, prj); err != nil {
			return err
		}
		d.log().WithField("file", name).Info("wrote neighbor geometry")
		return nil
	}
}
