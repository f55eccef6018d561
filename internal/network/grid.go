// SPDX-License-Identifier: MIT
package network

import "math"

// spatialGrid is a transient uniform-cell index over node positions,
// rebuilt fully each tick. Bucket slices are retained between rebuilds
// and truncated in place so the hot path allocates only when a cell is
// occupied for the first time.
type spatialGrid struct {
	cells    map[uint64][]int
	cellSize float64
}

func newSpatialGrid() *spatialGrid {
	return &spatialGrid{cells: make(map[uint64][]int)}
}

// cellKey packs the signed cell coordinates into one map key.
func cellKey(cx, cy int32) uint64 {
	return uint64(uint32(cx))<<32 | uint64(uint32(cy))
}

// rebuild re-buckets every active node. cellSize must be at least the
// current edge threshold so a 3x3 neighborhood scan covers all
// candidate neighbors.
func (g *spatialGrid) rebuild(nodes []Node, cellSize float64) {
	if cellSize <= 0 {
		cellSize = 1
	}
	g.cellSize = cellSize

	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}

	for i := range nodes {
		if !nodes[i].Active {
			continue
		}
		cx := int32(math.Floor(nodes[i].X / cellSize))
		cy := int32(math.Floor(nodes[i].Y / cellSize))
		key := cellKey(cx, cy)
		g.cells[key] = append(g.cells[key], i)
	}
}

// visitNeighborhood calls fn with each bucket in the 3x3 cell
// neighborhood around (x, y).
func (g *spatialGrid) visitNeighborhood(x, y float64, fn func(bucket []int)) {
	cx := int32(math.Floor(x / g.cellSize))
	cy := int32(math.Floor(y / g.cellSize))
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			if bucket, ok := g.cells[cellKey(cx+dx, cy+dy)]; ok && len(bucket) > 0 {
				fn(bucket)
			}
		}
	}
}
