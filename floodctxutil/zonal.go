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

package floodctxutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/sirupsen/logrus"
)

// meanProperty is the name of the feature property holding the zonal mean
// in the output of the zonal statistics command.
const meanProperty = "_mean"

// RasterioZonalStats calculates zonal statistics by running the
// rasterstats command line tool ("rio zonalstats").
type RasterioZonalStats struct {
	// Command is the command and any leading arguments. The zones file,
	// "--raster", the raster file, "--stats", "mean", "--prefix", and
	// "_" are appended to it.
	Command []string

	Log logrus.FieldLogger
}

// Mean implements floodctx.ZonalStatistics.
func (r RasterioZonalStats) Mean(ctx context.Context, zones []geom.Polygonal, rasterFile string) ([]float64, error) {
	if len(zones) == 0 {
		return nil, nil
	}
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("floodctxutil: no zonal statistics command specified")
	}
	f, err := ioutil.TempFile("", "floodctx_zones*.geojson")
	if err != nil {
		return nil, fmt.Errorf("floodctxutil: creating zones file: %w", err)
	}
	defer os.Remove(f.Name())
	if err := writeZones(f, zones); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := append(append([]string{}, r.Command[1:]...),
		f.Name(), "--raster", rasterFile, "--stats", "mean", "--prefix", "_")
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Log != nil {
		r.Log.WithFields(logrus.Fields{
			"command": strings.Join(r.Command, " "),
			"zones":   len(zones),
		}).Info("running zonal statistics")
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("floodctxutil: running %s: %w: %s", strings.Join(r.Command, " "), err, strings.TrimSpace(stderr.String()))
	}
	v, err := parseZonalMeans(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if len(v) != len(zones) {
		return nil, fmt.Errorf("floodctxutil: zonal statistics returned %d features for %d zones", len(v), len(zones))
	}
	return v, nil
}

type feature struct {
	Type       string                 `json:"type"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type featureCollection struct {
	Type     string     `json:"type"`
	Features []*feature `json:"features"`
}

// writeZones writes zones to w as a GeoJSON FeatureCollection.
func writeZones(w *os.File, zones []geom.Polygonal) error {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]*feature, len(zones)),
	}
	for i, z := range zones {
		fc.Features[i] = &feature{
			Type:       "Feature",
			Geometry:   multiPolygon(z),
			Properties: map[string]interface{}{"zone": i},
		}
	}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return fmt.Errorf("floodctxutil: writing zones: %w", err)
	}
	return nil
}

// multiPolygon converts g to a GeoJSON MultiPolygon. Rings nested
// within an odd number of other rings are treated as holes of the
// smallest ring that contains them.
func multiPolygon(g geom.Polygonal) *geojson.Geometry {
	var rings [][]geom.Point
	for _, p := range g.Polygons() {
		for _, r := range p {
			rings = append(rings, r)
		}
	}
	type part struct {
		outer []geom.Point
		holes [][]geom.Point
	}
	parent := make([]int, len(rings))
	depth := make([]int, len(rings))
	for i, r := range rings {
		parent[i] = -1
		if len(r) == 0 {
			continue
		}
		var minArea float64
		for j, o := range rings {
			if i == j || len(o) == 0 || r[0].Within(geom.Polygon{o}) != geom.Inside {
				continue
			}
			depth[i]++
			if a := (geom.Polygon{o}).Area(); parent[i] < 0 || a < minArea {
				parent[i], minArea = j, a
			}
		}
	}
	index := make(map[int]int)
	var parts []*part
	for i, r := range rings {
		if depth[i]%2 == 0 {
			index[i] = len(parts)
			parts = append(parts, &part{outer: r})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 1 {
			if k, ok := index[parent[i]]; ok {
				parts[k].holes = append(parts[k].holes, r)
			}
		}
	}
	coords := make([][][][]float64, len(parts))
	for i, p := range parts {
		coords[i] = append(coords[i], ringCoordinates(p.outer))
		for _, h := range p.holes {
			coords[i] = append(coords[i], ringCoordinates(h))
		}
	}
	return &geojson.Geometry{Type: "MultiPolygon", Coordinates: coords}
}

// ringCoordinates returns the coordinates of a closed ring.
func ringCoordinates(r []geom.Point) [][]float64 {
	o := make([][]float64, 0, len(r)+1)
	for _, p := range r {
		o = append(o, []float64{p.X, p.Y})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		o = append(o, []float64{r[0].X, r[0].Y})
	}
	return o
}

// parseZonalMeans returns the mean property of each feature in a GeoJSON
// FeatureCollection. Missing or null means are returned as NaN.
func parseZonalMeans(b []byte) ([]float64, error) {
	var fc struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("floodctxutil: parsing zonal statistics output: %w", err)
	}
	o := make([]float64, len(fc.Features))
	for i, f := range fc.Features {
		if v, ok := f.Properties[meanProperty].(float64); ok {
			o[i] = v
		} else {
			o[i] = math.NaN()
		}
	}
	return o, nil
}
