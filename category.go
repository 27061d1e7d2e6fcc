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

// FlowValue is the change in flood extent of a grid cell, in percentage
// points. Positive values represent net inflow and negative values
// represent net outflow.
type FlowValue float64

// Category is a risk category assigned to a grid cell based on its
// FlowValue.
type Category int

// These are the available cell categories.
const (
	// Yellow cells have a moderate flow change.
	Yellow Category = iota
	// Green cells have a net inflow of at least ClassThreshold.
	Green
	// Red cells have a net outflow of at least ClassThreshold and
	// are considered high risk.
	Red
)

// ClassThreshold is the magnitude of flow change, in percentage points,
// at or beyond which a cell is classified as Green or Red.
const ClassThreshold FlowValue = 30

func (c Category) String() string {
	switch c {
	case Green:
		return "GREEN"
	case Red:
		return "RED"
	case Yellow:
		return "YELLOW"
	default:
		return "UNKNOWN"
	}
}

// Classify returns the category of a cell with the given flow value.
// Both thresholds are inclusive. Values that are not numbers are
// classified as Yellow.
func Classify(flow FlowValue) Category {
	switch {
	case flow >= ClassThreshold:
		return Green
	case flow <= -ClassThreshold:
		return Red
	default:
		return Yellow
	}
}
