// Package forest implements CART classification trees and a random forest.
package forest

import (
	"math"
	"math/rand/v2"
	"sort"
)

// TreeConfig controls how a single tree grows.
type TreeConfig struct {
	// MaxFeatures is the number of features drawn at each split.
	// Zero or more than the feature count means all features.
	MaxFeatures int
	// MaxDepth limits tree depth; zero grows until leaves are pure.
	MaxDepth int
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int
	// MinSamplesLeaf is the smallest number of samples in a leaf.
	MinSamplesLeaf int
}

type node struct {
	proba     []float64
	feature   int
	threshold float64
	left      int
	right     int
	leaf      bool
}

// Tree is a fitted classification tree. Splits send x[feature] <= threshold
// to the left child.
type Tree struct {
	nodes      []node
	importance []float64
	cfg        TreeConfig
	nClasses   int
}

type splitCandidate struct {
	feature   int
	threshold float64
	impurity  float64
	ok        bool
}

type grower struct {
	x     [][]float64
	y     []int
	rng   *rand.Rand
	tree  *Tree
	order []int
}

// fitTree grows a tree on the given sample indices. Indices may repeat,
// which is how bootstrap weighting is expressed.
func fitTree(x [][]float64, y []int, samples []int, nClasses int, cfg TreeConfig, rng *rand.Rand) *Tree {
	nFeatures := len(x[0])
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > nFeatures {
		cfg.MaxFeatures = nFeatures
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}

	t := &Tree{
		cfg:        cfg,
		nClasses:   nClasses,
		importance: make([]float64, nFeatures),
	}
	g := &grower{
		x:     x,
		y:     y,
		rng:   rng,
		tree:  t,
		order: make([]int, len(samples)),
	}
	g.grow(samples, 0)

	var total float64
	for _, v := range t.importance {
		total += v
	}
	if total > 0 {
		for i := range t.importance {
			t.importance[i] /= total
		}
	}
	return t
}

// grow appends the subtree for samples and returns its node index.
func (g *grower) grow(samples []int, depth int) int {
	counts := g.classCounts(samples)
	n := float64(len(samples))
	impurity := gini(counts, n)

	idx := len(g.tree.nodes)
	g.tree.nodes = append(g.tree.nodes, node{leaf: true, proba: normalize(counts, n)})

	cfg := g.tree.cfg
	if impurity <= 0 ||
		len(samples) < cfg.MinSamplesSplit ||
		len(samples) < 2*cfg.MinSamplesLeaf ||
		(cfg.MaxDepth > 0 && depth >= cfg.MaxDepth) {
		return idx
	}

	best := g.bestSplit(samples)
	if !best.ok {
		return idx
	}

	// Partition in place: left holds x <= threshold.
	i, j := 0, len(samples)-1
	for i <= j {
		if g.x[samples[i]][best.feature] <= best.threshold {
			i++
		} else {
			samples[i], samples[j] = samples[j], samples[i]
			j--
		}
	}

	// A threshold that sends every sample one way would recurse forever.
	if i == 0 || i == len(samples) {
		return idx
	}

	g.tree.importance[best.feature] += n*impurity - best.impurity

	left := g.grow(samples[:i], depth+1)
	right := g.grow(samples[i:], depth+1)

	nd := &g.tree.nodes[idx]
	nd.leaf = false
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = left
	nd.right = right
	return idx
}

// bestSplit draws features without replacement until MaxFeatures have been
// examined and at least one valid split was found.
func (g *grower) bestSplit(samples []int) splitCandidate {
	features := g.rng.Perm(len(g.x[0]))
	best := splitCandidate{}

	for visited, f := range features {
		if visited >= g.tree.cfg.MaxFeatures && best.ok {
			break
		}
		if c := g.splitOn(samples, f); c.ok && (!best.ok || c.impurity < best.impurity) {
			best = c
		}
	}
	return best
}

// splitOn finds the threshold on feature f minimising the weighted Gini
// impurity n_l*gini(l) + n_r*gini(r).
func (g *grower) splitOn(samples []int, f int) splitCandidate {
	order := g.order[:len(samples)]
	copy(order, samples)
	// NaN sorts last so the order stays total.
	sort.Slice(order, func(a, b int) bool {
		va, vb := g.x[order[a]][f], g.x[order[b]][f]
		return va < vb || (math.IsNaN(vb) && !math.IsNaN(va))
	})

	n := len(order)
	if g.x[order[0]][f] == g.x[order[n-1]][f] {
		return splitCandidate{}
	}

	right := g.classCounts(order)
	left := make([]float64, g.tree.nClasses)
	minLeaf := g.tree.cfg.MinSamplesLeaf

	best := splitCandidate{feature: f}
	for i := 0; i < n-1; i++ {
		c := g.y[order[i]]
		left[c]++
		right[c]--

		lo, hi := g.x[order[i]][f], g.x[order[i+1]][f]
		if lo == hi || math.IsNaN(lo) || math.IsNaN(hi) {
			continue
		}
		nl, nr := float64(i+1), float64(n-i-1)
		if int(nl) < minLeaf || int(nr) < minLeaf {
			continue
		}

		imp := nl*gini(left, nl) + nr*gini(right, nr)
		if !best.ok || imp < best.impurity {
			best.ok = true
			best.impurity = imp
			best.threshold = midpoint(lo, hi)
		}
	}
	return best
}

// midpoint returns a threshold t with lo <= t < hi. Adjacent floats,
// infinities and overflow fall back to lo.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if !(t >= lo && t < hi) {
		return lo
	}
	return t
}

func (g *grower) classCounts(samples []int) []float64 {
	counts := make([]float64, g.tree.nClasses)
	for _, s := range samples {
		counts[g.y[s]]++
	}
	return counts
}

// PredictProba returns the class distribution of the leaf x falls into.
func (t *Tree) PredictProba(x []float64) []float64 {
	i := 0
	for !t.nodes[i].leaf {
		nd := t.nodes[i]
		if x[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
	return t.nodes[i].proba
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		nd := t.nodes[i]
		if nd.leaf {
			return 0
		}
		return 1 + max(walk(nd.left), walk(nd.right))
	}
	return walk(0)
}

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.leaf {
			n++
		}
	}
	return n
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / n
		sum += p * p
	}
	return 1 - sum
}

func normalize(counts []float64, n float64) []float64 {
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = c / n
	}
	return p
}
