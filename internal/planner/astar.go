package planner

import (
	"container/heap"
	"errors"
	"math"

	"github.com/skyplan/skyplan/internal/geo"
)

// Fuel-stop search: A* over candidate airports with a spatial grid index.
// Edges connect airports within the maximum leg distance; edge cost is the
// great-circle distance plus an optional per-leg penalty that biases the
// search toward fewer stops.

var (
	// ErrNoRoute means no chain of legs within the maximum leg distance
	// connects origin to destination.
	ErrNoRoute = errors.New("no route found within maximum leg distance")

	// ErrSearchExceeded means the search expanded too many nodes before
	// reaching the destination.
	ErrSearchExceeded = errors.New("fuel stop search exceeded expansion budget")
)

// defaultMaxExpansions bounds the A* search.
const defaultMaxExpansions = 20000

// Node is an airport candidate for the fuel-stop search.
type Node struct {
	Code string
	Lat  float64
	Lon  float64
}

type cellKey struct {
	row, col int
}

func keyFor(lat, lon, cellDeg float64) cellKey {
	return cellKey{
		row: int(math.Floor(lat / cellDeg)),
		col: int(math.Floor(lon / cellDeg)),
	}
}

// openItem is an entry in the A* frontier.
type openItem struct {
	f    float64
	node int
}

type openHeap []openItem

func (h openHeap) Len() int            { return len(h) }
func (h openHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h openHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *openHeap) Push(x interface{}) { *h = append(*h, x.(openItem)) }
func (h *openHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FindRoute returns the chain of airport codes from origin to destination
// where every leg is at most maxLegNM. If the direct leg fits, the result is
// just [origin, destination]. perLegPenaltyNM is added to every edge cost;
// a zero maxExpansions uses the default budget.
func FindRoute(origin, destination Node, candidates []Node, maxLegNM, perLegPenaltyNM float64, maxExpansions int) ([]string, error) {
	if maxLegNM <= 0 {
		return nil, errors.New("max leg distance must be > 0")
	}
	if maxExpansions <= 0 {
		maxExpansions = defaultMaxExpansions
	}

	if geo.HaversineNM(origin.Lat, origin.Lon, destination.Lat, destination.Lon) <= maxLegNM {
		return []string{origin.Code, destination.Code}, nil
	}

	// Node list: origin first, then deduplicated candidates. The destination
	// usually already sits somewhere in the candidate set; remember its slot
	// there and only append it when it does not.
	nodes := []Node{origin}
	seen := map[string]bool{origin.Code: true}
	destIdx := -1
	for _, n := range candidates {
		if seen[n.Code] {
			continue
		}
		if n.Code == destination.Code {
			destIdx = len(nodes)
		}
		nodes = append(nodes, n)
		seen[n.Code] = true
	}
	if destIdx == -1 {
		nodes = append(nodes, destination)
		destIdx = len(nodes) - 1
	}

	// Grid cells sized so a leg never spans more than the 3x3 neighborhood.
	cellDeg := math.Max(0.25, maxLegNM/60.0)
	buckets := make(map[cellKey][]int)
	for i, n := range nodes {
		k := keyFor(n.Lat, n.Lon, cellDeg)
		buckets[k] = append(buckets[k], i)
	}

	open := &openHeap{{f: 0, node: 0}}
	cameFrom := make(map[int]int)
	gScore := map[int]float64{0: 0}

	expansions := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(openItem).node
		expansions++
		if expansions > maxExpansions {
			return nil, ErrSearchExceeded
		}

		if current == destIdx {
			path := []int{current}
			for {
				prev, ok := cameFrom[current]
				if !ok {
					break
				}
				current = prev
				path = append(path, current)
			}
			codes := make([]string, len(path))
			for i := range path {
				codes[i] = nodes[path[len(path)-1-i]].Code
			}
			return codes, nil
		}

		cn := nodes[current]
		ck := keyFor(cn.Lat, cn.Lon, cellDeg)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for _, next := range buckets[cellKey{ck.row + dy, ck.col + dx}] {
					if next == current {
						continue
					}
					d := geo.HaversineNM(cn.Lat, cn.Lon, nodes[next].Lat, nodes[next].Lon)
					if d > maxLegNM {
						continue
					}
					tentative := gScore[current] + d + perLegPenaltyNM
					if existing, ok := gScore[next]; ok && tentative >= existing {
						continue
					}
					cameFrom[next] = current
					gScore[next] = tentative
					h := geo.HaversineNM(nodes[next].Lat, nodes[next].Lon, nodes[destIdx].Lat, nodes[destIdx].Lon)
					heap.Push(open, openItem{f: tentative + h, node: next})
				}
			}
		}
	}

	return nil, ErrNoRoute
}
