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
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// ZonalStatistics calculates statistics of raster values within zones.
type ZonalStatistics interface {
	// Mean returns the mean value of the raster at rasterFile within
	// each of the zones, in the same order as zones. Zones that do not
	// overlap any raster data have a mean of NaN.
	Mean(ctx context.Context, zones []geom.Polygonal, rasterFile string) ([]float64, error)
}

// CellColumn is the name of the output column holding the mean raster
// value within each cell.
const CellColumn = "cell_alt"

// maxFieldName is the maximum length of a shapefile attribute name.
const maxFieldName = 10

// DefaultOutputVariables returns the derived output columns calculated
// when none are specified: the difference between the value within each
// cell and the value of its surroundings.
func DefaultOutputVariables(statType StatisticType) map[string]string {
	return map[string]string{
		"stat_1": CellColumn + " - " + statType.Column(),
	}
}

// Statistics holds raster statistics for the cells of a domain.
type Statistics struct {
	Type          StatisticType
	NeighborCount int

	// Cells are the cells the statistics were calculated for.
	Cells []*Cell

	// Columns holds the output column names in order.
	Columns []string

	// Values holds the values of each column, in the order of Cells.
	Values map[string][]float64
}

var statisticsFuncs = map[string]govaluate.ExpressionFunction{
	"abs": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("floodctx: got %d arguments for function 'abs', but needs 1", len(arg))
		}
		return math.Abs(arg[0].(float64)), nil
	},
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("floodctx: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
}

// NewStatistics calculates the mean value of the raster in rasterFile
// within the neighbor geometry of each cell in d and within each cell
// itself, and then evaluates the expressions in outputVariables for
// each cell. Expressions can refer to VALUE (the flow value), cell_alt,
// and the neighborhood column for the statistic type of d (surr_alt or
// red_alt). If outputVariables is empty, DefaultOutputVariables is used.
func NewStatistics(ctx context.Context, d *Domain, zs ZonalStatistics, rasterFile string, outputVariables map[string]string) (*Statistics, error) {
	n, statType := d.Parameters()
	s := &Statistics{
		Type:          statType,
		NeighborCount: n,
		Values:        make(map[string][]float64),
	}
	for _, c := range d.Cells() {
		if c.NeighborGeometry != nil {
			s.Cells = append(s.Cells, c)
		}
	}
	if len(outputVariables) == 0 {
		outputVariables = DefaultOutputVariables(statType)
	}
	exprs, names, err := parseOutputVariables(outputVariables, statType)
	if err != nil {
		return nil, err
	}

	nbrZones := make([]geom.Polygonal, len(s.Cells))
	cellZones := make([]geom.Polygonal, len(s.Cells))
	flows := make([]float64, len(s.Cells))
	for i, c := range s.Cells {
		nbrZones[i] = c.NeighborGeometry
		cellZones[i] = c.Polygonal
		flows[i] = float64(c.Flow)
	}
	surr, err := zonalMean(ctx, zs, nbrZones, rasterFile)
	if err != nil {
		return nil, err
	}
	own, err := zonalMean(ctx, zs, cellZones, rasterFile)
	if err != nil {
		return nil, err
	}
	s.Columns = []string{"VALUE", statType.Column(), CellColumn}
	s.Values["VALUE"] = flows
	s.Values[statType.Column()] = surr
	s.Values[CellColumn] = own

	for _, name := range names {
		vals := make([]float64, len(s.Cells))
		for i := range s.Cells {
			params := make(map[string]interface{}, len(s.Columns))
			for _, col := range s.Columns {
				params[col] = s.Values[col][i]
			}
			v, err := exprs[name].Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("floodctx: evaluating output variable %s: %w", name, err)
			}
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("floodctx: output variable %s has type %T; it needs to be a number", name, v)
			}
			vals[i] = f
		}
		s.Columns = append(s.Columns, name)
		s.Values[name] = vals
	}
	d.log().WithField("cells", len(s.Cells)).Info("calculated raster statistics")
	return s, nil
}

func zonalMean(ctx context.Context, zs ZonalStatistics, zones []geom.Polygonal, rasterFile string) ([]float64, error) {
	v, err := zs.Mean(ctx, zones, rasterFile)
	if err != nil {
		return nil, fmt.Errorf("floodctx: calculating zonal statistics: %w", err)
	}
	if len(v) != len(zones) {
		return nil, fmt.Errorf("floodctx: zonal statistics returned %d values for %d zones", len(v), len(zones))
	}
	return v, nil
}

// parseOutputVariables parses the output variable expressions and
// returns them along with the variable names in sorted order.
func parseOutputVariables(vars map[string]string, statType StatisticType) (map[string]*govaluate.EvaluableExpression, []string, error) {
	reserved := map[string]bool{"VALUE": true, "celltype": true, CellColumn: true, statType.Column(): true}
	exprs := make(map[string]*govaluate.EvaluableExpression, len(vars))
	names := make([]string, 0, len(vars))
	for name, v := range vars {
		if len(name) > maxFieldName {
			return nil, nil, fmt.Errorf("floodctx: output variable name '%s' is longer than %d characters", name, maxFieldName)
		}
		if reserved[name] {
			return nil, nil, fmt.Errorf("floodctx: output variable name '%s' is already in use", name)
		}
		e, err := govaluate.NewEvaluableExpressionWithFunctions(v, statisticsFuncs)
		if err != nil {
			return nil, nil, fmt.Errorf("floodctx: parsing output variable %s: %w", name, err)
		}
		for _, vv := range e.Vars() {
			if vv != "VALUE" && vv != CellColumn && vv != statType.Column() {
				return nil, nil, fmt.Errorf("floodctx: output variable %s uses unknown variable '%s'", name, vv)
			}
		}
		exprs[name] = e
		names = append(names, name)
	}
	sort.Strings(names)
	return exprs, names, nil
}

// StatisticsFileName returns the base name of the statistics shapefile
// for the given statistic type and neighbor count.
func StatisticsFileName(statType StatisticType, neighborCount int) string {
	return fmt.Sprintf("stat_%d_%d_cells.shp", int(statType), neighborCount)
}

// FileName returns the name of the statistics shapefile in directory dir.
func (s *Statistics) FileName(dir string) string {
	return filepath.Join(dir, StatisticsFileName(s.Type, s.NeighborCount))
}

// Write writes the statistics to a shapefile with the cell geometries.
// prj is written to a .prj file if it is not empty.
func (s *Statistics) Write(fileName, prj string) error {
	fields := []goshp.Field{goshp.StringField("celltype", 6)}
	for _, col := range s.Columns {
		fields = append(fields, goshp.FloatField(col, 14, 8))
	}
	e, err := shp.NewEncoderFromFields(fileName, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("error creating statistics shapefile: %w", err)
	}
	for i, c := range s.Cells {
		vals := make([]interface{}, 0, len(fields))
		vals = append(vals, c.Category.String())
		for _, col := range s.Columns {
			vals = append(vals, s.Values[col][i])
		}
		if err := e.EncodeFields(polygon(c.Polygonal), vals...); err != nil {
			e.Close()
			return fmt.Errorf("error writing statistics shapefile: %w", err)
		}
	}
	e.Close()
	return writeProjection(fileName, prj)
}

// StatisticsOutput returns a function that calculates raster statistics
// for the cells in the domain with NewStatistics and writes them to a
// shapefile named according to the statistic type and neighbor count
// in directory dir.
func StatisticsOutput(ctx context.Context, zs ZonalStatistics, rasterFile string, outputVariables map[string]string, dir, prj string) DomainManipulator {
	return func(d *Domain) error {
		s, err := NewStatistics(ctx, d, zs, rasterFile, outputVariables)
		if err != nil {
			return err
		}
		fileName := s.FileName(dir)
		if err := s.Write(fileName, prj); err != nil {
			return err
		}
		d.log().WithField("file", fileName).Info("wrote statistics")
		return nil
	}
}
