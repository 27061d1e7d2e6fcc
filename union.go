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
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ctessum/geom"
	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// UnionFunc calculates the union of two polygonal geometries.
type UnionFunc func(a, b geom.Polygonal) geom.Polygonal

// PolygonUnion is the default UnionFunc.
func PolygonUnion(a, b geom.Polygonal) geom.Polygonal {
	return a.Union(b)
}

// UnionCache calculates unions of sets of cell geometries, reusing
// the unions of previously requested sets. The union of a set is
// built from the union of the set without its largest ID, so
// overlapping neighborhoods share most of their work.
// A UnionCache is safe for concurrent use, and no set is unioned
// more than once.
type UnionCache struct {
	requests, hits, unions int64

	geometry func(id int) (geom.Polygonal, bool)
	union    UnionFunc

	mx sync.Mutex
	// results has no entry limit; keys are never evicted.
	results *lru.Cache
	group   singleflight.Group
}

// NewUnionCache returns a new cache that looks up cell geometries using
// the geometry function and combines them using union. If union is nil,
// PolygonUnion is used.
func NewUnionCache(geometry func(id int) (geom.Polygonal, bool), union UnionFunc) *UnionCache {
	if union == nil {
		union = PolygonUnion
	}
	return &UnionCache{
		geometry: geometry,
		union:    union,
		results:  lru.New(0),
	}
}

// UnionOf returns the union of the geometries of the cells with the
// given IDs. The order of ids does not matter and duplicates are
// ignored. The result is nil for an empty set and is the cell's own
// geometry for a single ID.
func (uc *UnionCache) UnionOf(ids []int) (geom.Polygonal, error) {
	set := make([]int, len(ids))
	copy(set, ids)
	return uc.unionOf(sortedSet(set))
}

func (uc *UnionCache) unionOf(set []int) (geom.Polygonal, error) {
	atomic.AddInt64(&uc.requests, 1)
	switch len(set) {
	case 0:
		return nil, nil
	case 1:
		return uc.cellGeometry(set[0])
	}
	key := setKey(set)
	if g, ok := uc.lookup(key); ok {
		atomic.AddInt64(&uc.hits, 1)
		return g, nil
	}
	v, err := uc.group.Do(key, func() (interface{}, error) {
		// Another caller may have stored the result after our lookup.
		if g, ok := uc.lookup(key); ok {
			atomic.AddInt64(&uc.hits, 1)
			return g, nil
		}
		last := set[len(set)-1]
		rest, err := uc.unionOf(set[:len(set)-1])
		if err != nil {
			return nil, err
		}
		lastGeom, err := uc.cellGeometry(last)
		if err != nil {
			return nil, err
		}
		g := uc.union(rest, lastGeom)
		atomic.AddInt64(&uc.unions, 1)
		uc.mx.Lock()
		uc.results.Add(key, g)
		uc.mx.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	g, _ := v.(geom.Polygonal)
	return g, nil
}

func (uc *UnionCache) lookup(key string) (geom.Polygonal, bool) {
	uc.mx.Lock()
	defer uc.mx.Unlock()
	v, ok := uc.results.Get(key)
	if !ok {
		return nil, false
	}
	g, _ := v.(geom.Polygonal)
	return g, true
}

func (uc *UnionCache) cellGeometry(id int) (geom.Polygonal, error) {
	g, ok := uc.geometry(id)
	if !ok {
		return nil, fmt.Errorf("floodctx: no geometry for cell %d", id)
	}
	return g, nil
}

// setKey returns the cache key for a sorted set of IDs.
func setKey(set []int) string {
	var b strings.Builder
	for i, id := range set {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// CacheStats holds usage statistics for a UnionCache.
type CacheStats struct {
	// Requests is the number of union requests, including the
	// requests the cache makes to itself.
	Requests int64

	// Hits is the number of requests answered from stored results.
	Hits int64

	// Unions is the number of geometric unions calculated.
	Unions int64

	// Entries is the number of stored results.
	Entries int
}

// Stats returns usage statistics for uc.
func (uc *UnionCache) Stats() CacheStats {
	uc.mx.Lock()
	entries := uc.results.Len()
	uc.mx.Unlock()
	return CacheStats{
		Requests: atomic.LoadInt64(&uc.requests),
		Hits:     atomic.LoadInt64(&uc.hits),
		Unions:   atomic.LoadInt64(&uc.unions),
		Entries:  entries,
	}
}
