// SPDX-License-Identifier: MIT
package network

// Node is a mobile point in the simulation. Nodes live in a
// preallocated arena owned by the Network; the Active flag marks the
// live subset. Nodes carry no persistent identity across a resize.
type Node struct {
	ID      int
	X, Y    float64
	TargetX float64
	TargetY float64
	Size    float64 // Visual hint, driven by bass energy.
	Glow    float64 // Visual hint, driven by high energy.
	Active  bool
}

// Edge is a proximity link between two nodes. Edges are regenerated
// from scratch every tick; the node references are non-owning and valid
// only until the next Update call.
type Edge struct {
	A, B      *Node
	Distance  float64
	Opacity   float64
	Thickness float64
	Active    bool
}

// Stats is the per-tick query contract for renderers.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}
