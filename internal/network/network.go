// SPDX-License-Identifier: MIT
/*
Package network implements the audio-reactive spatial network
simulation: a set of mobile nodes whose proximity links are recomputed
every tick through a uniform spatial grid, bounding edge computation to
the local cell neighborhood instead of all node pairs.

The network consumes the per-tick audio description as a generic
energy/beat input; a nil or zeroed description degrades to "no audio
reactivity", never to an error.
*/
package network

import (
	"math"
	"math/rand"

	"pulseviz/internal/analysis"
	"pulseviz/internal/config"
)

const (
	minBeatConfidence = 0.5  // Beats below this confidence do not rewire.
	rewireFraction    = 0.1  // Share of nodes repositioned on a beat.
	burstBaseCount    = 2    // Bonus nodes spawned per qualifying beat.
	midThresholdBoost = 40.0 // Max threshold expansion from mid energy.

	baseNodeSize  = 2.0
	bassSizeBoost = 6.0

	baseSpeed     = 0.02 // Easing factor toward the target position.
	arrivalRadius = 2.0  // Distance at which a node picks a new target.
)

// Network owns the node arena and recomputes edges each tick.
type Network struct {
	nodes []Node
	edges []Edge
	grid  *spatialGrid

	targetCount         int
	connectionThreshold float64
	width, height       float64

	rng    *rand.Rand
	nextID int
}

// New creates an empty network sized by the configuration. Call
// Initialize to populate it.
func New(cfg config.NetworkConfig, seed int64) *Network {
	return &Network{
		grid:                newSpatialGrid(),
		targetCount:         cfg.NodeCount,
		connectionThreshold: math.Max(cfg.ConnectionThreshold, 0),
		width:               cfg.Width,
		height:              cfg.Height,
		rng:                 rand.New(rand.NewSource(seed)),
	}
}

// Initialize discards any existing nodes and creates nodeCount nodes at
// random positions. The arena is preallocated to the burst headroom so
// beat spawns never reallocate.
func (n *Network) Initialize(nodeCount int) {
	if nodeCount < 1 {
		nodeCount = 1
	}
	n.targetCount = nodeCount

	capacity := n.maxNodes()
	n.nodes = make([]Node, 0, capacity)
	n.edges = make([]Edge, 0, capacity*4)
	n.nextID = 0

	for range nodeCount {
		n.spawnNode()
	}
}

// maxNodes is the hard cap on live nodes: burst spawns may not push the
// set beyond the headroom factor over the target count.
func (n *Network) maxNodes() int {
	return int(math.Ceil(float64(n.targetCount) * config.BurstHeadroom))
}

// spawnNode activates a node at a random position, reusing an inactive
// arena slot when one exists. Returns false when the arena is at capacity.
func (n *Network) spawnNode() bool {
	for i := range n.nodes {
		if !n.nodes[i].Active {
			n.resetNode(&n.nodes[i])
			return true
		}
	}
	if len(n.nodes) >= n.maxNodes() {
		return false
	}
	n.nodes = append(n.nodes, Node{})
	n.resetNode(&n.nodes[len(n.nodes)-1])
	return true
}

func (n *Network) resetNode(node *Node) {
	node.ID = n.nextID
	n.nextID++
	node.X = n.rng.Float64() * n.width
	node.Y = n.rng.Float64() * n.height
	node.TargetX = n.rng.Float64() * n.width
	node.TargetY = n.rng.Float64() * n.height
	node.Size = baseNodeSize
	node.Glow = 0
	node.Active = true
}

// Update advances the simulation one tick: node motion and visual hints
// from band energies, grid rebuild, edge recomputation, and on a
// qualifying beat a partial rewire plus a burst spawn. A nil description
// is treated as silence.
func (n *Network) Update(desc *analysis.AudioDescription) {
	var silent analysis.AudioDescription
	if desc == nil {
		desc = &silent
	}

	n.moveNodes(desc)

	if desc.IsBeat && desc.BeatConfidence >= minBeatConfidence {
		n.rewire()
		n.burstSpawn(desc.BeatStrength)
	}

	n.trimToCapacity()

	threshold := n.dynamicThreshold(desc.Mids)
	n.grid.rebuild(n.nodes, math.Max(threshold, 1))
	n.computeEdges(threshold, desc.Bass)
}

// dynamicThreshold expands the base connection threshold with mid-band
// energy. Never negative.
func (n *Network) dynamicThreshold(mid float64) float64 {
	t := n.connectionThreshold + mid*midThresholdBoost
	if t < 0 {
		return 0
	}
	return t
}

func (n *Network) moveNodes(desc *analysis.AudioDescription) {
	speed := baseSpeed * (1 + desc.Total*2)

	for i := range n.nodes {
		node := &n.nodes[i]
		if !node.Active {
			continue
		}

		node.X += (node.TargetX - node.X) * speed
		node.Y += (node.TargetY - node.Y) * speed

		dx := node.TargetX - node.X
		dy := node.TargetY - node.Y
		if dx*dx+dy*dy < arrivalRadius*arrivalRadius {
			node.TargetX = n.rng.Float64() * n.width
			node.TargetY = n.rng.Float64() * n.height
		}

		node.Size = baseNodeSize + desc.Bass*bassSizeBoost
		node.Glow = desc.Highs
	}
}

// rewire repositions a random fraction of active nodes.
func (n *Network) rewire() {
	for i := range n.nodes {
		if !n.nodes[i].Active || n.rng.Float64() >= rewireFraction {
			continue
		}
		n.nodes[i].X = n.rng.Float64() * n.width
		n.nodes[i].Y = n.rng.Float64() * n.height
		n.nodes[i].TargetX = n.rng.Float64() * n.width
		n.nodes[i].TargetY = n.rng.Float64() * n.height
	}
}

// burstSpawn adds bonus nodes on a beat, more for stronger beats.
// spawnNode enforces the headroom cap.
func (n *Network) burstSpawn(strength analysis.BeatStrength) {
	count := burstBaseCount + int(strength)
	for range count {
		if !n.spawnNode() {
			return
		}
	}
}

// trimToCapacity deactivates the newest nodes while the live set
// exceeds the headroom cap, e.g. after SetNodeCount shrinks the target.
func (n *Network) trimToCapacity() {
	limit := n.maxNodes()
	active := n.activeCount()
	for i := len(n.nodes) - 1; i >= 0 && active > limit; i-- {
		if n.nodes[i].Active {
			n.nodes[i].Active = false
			active--
		}
	}
}

// computeEdges regenerates the edge set from current node positions.
// Each active node scans only its 3x3 grid neighborhood; pairs are
// deduplicated by index order. The edge arena is overwritten in place.
func (n *Network) computeEdges(threshold, bass float64) {
	n.edges = n.edges[:0]
	if threshold <= 0 {
		return
	}
	thresholdSq := threshold * threshold
	thickness := 0.5 + bass*2

	for i := range n.nodes {
		if !n.nodes[i].Active {
			continue
		}
		a := &n.nodes[i]
		n.grid.visitNeighborhood(a.X, a.Y, func(bucket []int) {
			for _, j := range bucket {
				if j <= i || !n.nodes[j].Active {
					continue
				}
				b := &n.nodes[j]
				dx := a.X - b.X
				dy := a.Y - b.Y
				distSq := dx*dx + dy*dy
				if distSq >= thresholdSq {
					continue
				}
				dist := math.Sqrt(distSq)
				n.edges = append(n.edges, Edge{
					A:         a,
					B:         b,
					Distance:  dist,
					Opacity:   1 - dist/threshold,
					Thickness: thickness,
					Active:    true,
				})
			}
		})
	}
}

// SetNodeCount adjusts the target node count live, growing or shrinking
// the active set without resetting unrelated state.
func (n *Network) SetNodeCount(count int) {
	if count < 1 {
		count = 1
	}
	n.targetCount = count

	for n.activeCount() < count {
		if !n.spawnNode() {
			break
		}
	}

	// Shrinking deactivates the newest nodes down to the new target.
	active := n.activeCount()
	for i := len(n.nodes) - 1; i >= 0 && active > count; i-- {
		if n.nodes[i].Active {
			n.nodes[i].Active = false
			active--
		}
	}
}

// SetConnectionThreshold adjusts the base edge distance live. Negative
// values clamp to zero.
func (n *Network) SetConnectionThreshold(t float64) {
	if t < 0 {
		t = 0
	}
	n.connectionThreshold = t
}

// Stats returns the active node and edge counts for this tick.
func (n *Network) Stats() Stats {
	return Stats{Nodes: n.activeCount(), Edges: len(n.edges)}
}

// Nodes exposes the node arena for read-only renderer iteration.
// Entries with Active=false are dead slots.
func (n *Network) Nodes() []Node {
	return n.nodes
}

// Edges exposes this tick's edge set for read-only renderer iteration.
// The slice is overwritten on the next Update.
func (n *Network) Edges() []Edge {
	return n.edges
}

func (n *Network) activeCount() int {
	count := 0
	for i := range n.nodes {
		if n.nodes[i].Active {
			count++
		}
	}
	return count
}
