package topology

import (
	"math"
	"sort"

	"github.com/mosaicnetworks/chronicle/src/peers"
)

// Side returns the side of the smallest square grid that holds n nodes.
func Side(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Distance returns the hop distance used at level: side / 3^level, at least 1.
func Distance(side, level int) int {
	d := side
	for i := 0; i < level && d > 0; i++ {
		d /= 3
	}
	if d < 1 {
		d = 1
	}
	return d
}

// MaxLevel returns the deepest dissemination level of a network of n nodes:
// the first level whose hop distance is 1, and never less than 2, the level
// at which certified elements start spreading.
func MaxLevel(n int) int {
	side := Side(n)
	level := 1
	for Distance(side, level) > 1 {
		level++
	}
	if level < 2 {
		level = 2
	}
	return level
}

// Position returns the grid coordinates of list index i.
func Position(i, side int) (x, y int) {
	return i % side, i / side
}

// Neighbors computes the neighbors of self at level, over a node list sorted
// by IP. The list is laid out row by row on a toroidal grid; the neighbors are
// the 8 cells of the Moore neighborhood at the level's hop distance. Cells
// past the end of the list fold back onto it. The result is deduplicated,
// excludes self and is sorted by IP. It is empty if self is not in nodes.
func Neighbors(nodes []*peers.Peer, self *peers.Peer, level int) []*peers.Peer {
	res := []*peers.Peer{}

	n := len(nodes)
	idx := peers.IndexOf(nodes, self)
	if n == 0 || idx < 0 {
		return res
	}

	side := Side(n)
	distance := Distance(side, level)
	x, y := Position(idx, side)

	taken := map[int]bool{idx: true}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := floorMod(x+dx*distance, side)
			ny := floorMod(y+dy*distance, side)
			j := floorMod(ny*side+nx, n)
			if taken[j] {
				continue
			}
			taken[j] = true
			res = append(res, nodes[j])
		}
	}

	sort.Sort(peers.ByIP(res))

	return res
}

// floorMod is a modulo whose result has the sign of m.
func floorMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
