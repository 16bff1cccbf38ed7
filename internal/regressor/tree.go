package regressor

import (
	"container/heap"
	"math"
	"sort"
)

// Node 트리 노드 (Feature < 0 이면 leaf)
type Node struct {
	Feature     int     `json:"f"`
	Threshold   float64 `json:"t,omitempty"`
	DefaultLeft bool    `json:"d,omitempty"`
	Left        int     `json:"l,omitempty"`
	Right       int     `json:"r,omitempty"`
	Value       float64 `json:"v,omitempty"`
}

// Tree 회귀 트리 (node 0 = root)
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predictRow walks the tree for one row; NaN follows the default branch.
func (t *Tree) predictRow(cols [][]float64, row int) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		v := cols[n.Feature][row]
		switch {
		case math.IsNaN(v):
			if n.DefaultLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// leaves returns the number of leaf nodes.
func (t *Tree) leaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Feature < 0 {
			n++
		}
	}
	return n
}

// =============================================================================
// Tree growth
// =============================================================================

// growConfig 트리 성장 제약
type growConfig struct {
	maxDepth       int // <= 0: 무제한
	maxLeaves      int // <= 0: 무제한
	minChildWeight float64
	lambda         float64
	alpha          float64
	gamma          float64
	maxDeltaStep   float64
	eta            float64
}

// softThreshold L1 정규화
func softThreshold(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func (c growConfig) score(g, h float64) float64 {
	t := softThreshold(g, c.alpha)
	return t * t / (h + c.lambda)
}

func (c growConfig) weight(g, h float64) float64 {
	if h+c.lambda <= 0 {
		return 0
	}
	w := -softThreshold(g, c.alpha) / (h + c.lambda)
	if c.maxDeltaStep > 0 {
		w = math.Max(-c.maxDeltaStep, math.Min(c.maxDeltaStep, w))
	}
	return w * c.eta
}

type splitCandidate struct {
	feature     int
	threshold   float64
	defaultLeft bool
	gain        float64
}

// pendingNode 분할 후보 leaf
type pendingNode struct {
	node  int
	rows  []int
	depth int
	g, h  float64
	split *splitCandidate
}

type nodeHeap []*pendingNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].split.gain > h[j].split.gain }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*pendingNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// treeBuilder 그래디언트 기반 트리 학습기
// 분할은 gain이 가장 큰 leaf부터 (leaf-wise), 깊이와 leaf 수 제약을 모두 따른다.
type treeBuilder struct {
	cfg      growConfig
	cols     [][]float64
	sorted   [][]int // feature별 non-NaN row를 값 오름차순으로
	features []int   // 이번 트리에서 사용할 feature
	grad     []float64
	hess     []float64
	inNode   []int // row → 현재 node id (-1: 미사용)
	gain     []float64
}

func presort(cols [][]float64) [][]int {
	out := make([][]int, len(cols))
	for f, col := range cols {
		rows := make([]int, 0, len(col))
		for i, v := range col {
			if !math.IsNaN(v) {
				rows = append(rows, i)
			}
		}
		sort.SliceStable(rows, func(a, b int) bool { return col[rows[a]] < col[rows[b]] })
		out[f] = rows
	}
	return out
}

func (b *treeBuilder) build(rows []int) *Tree {
	for i := range b.inNode {
		b.inNode[i] = -1
	}
	var g, h float64
	for _, r := range rows {
		b.inNode[r] = 0
		g += b.grad[r]
		h += b.hess[r]
	}

	tree := &Tree{Nodes: []Node{{Feature: -1, Value: b.cfg.weight(g, h)}}}
	root := &pendingNode{node: 0, rows: rows, depth: 0, g: g, h: h}
	root.split = b.findSplit(root)

	frontier := &nodeHeap{}
	if root.split != nil {
		heap.Push(frontier, root)
	}
	leaves := 1

	for frontier.Len() > 0 {
		if b.cfg.maxLeaves > 0 && leaves >= b.cfg.maxLeaves {
			break
		}
		p := heap.Pop(frontier).(*pendingNode)
		s := p.split

		var left, right []int
		var gl, hl, gr, hr float64
		col := b.cols[s.feature]
		for _, r := range p.rows {
			v := col[r]
			goLeft := v < s.threshold
			if math.IsNaN(v) {
				goLeft = s.defaultLeft
			}
			if goLeft {
				left = append(left, r)
				gl += b.grad[r]
				hl += b.hess[r]
			} else {
				right = append(right, r)
				gr += b.grad[r]
				hr += b.hess[r]
			}
		}

		li := len(tree.Nodes)
		ri := li + 1
		tree.Nodes = append(tree.Nodes,
			Node{Feature: -1, Value: b.cfg.weight(gl, hl)},
			Node{Feature: -1, Value: b.cfg.weight(gr, hr)},
		)
		tree.Nodes[p.node] = Node{
			Feature:     s.feature,
			Threshold:   s.threshold,
			DefaultLeft: s.defaultLeft,
			Left:        li,
			Right:       ri,
		}
		b.gain[s.feature] += s.gain
		leaves++

		for _, r := range left {
			b.inNode[r] = li
		}
		for _, r := range right {
			b.inNode[r] = ri
		}

		children := []*pendingNode{
			{node: li, rows: left, depth: p.depth + 1, g: gl, h: hl},
			{node: ri, rows: right, depth: p.depth + 1, g: gr, h: hr},
		}
		for _, c := range children {
			if b.cfg.maxDepth > 0 && c.depth >= b.cfg.maxDepth {
				continue
			}
			if c.split = b.findSplit(c); c.split != nil {
				heap.Push(frontier, c)
			}
		}
	}
	return tree
}

// findSplit exact greedy search over the sampled features.
func (b *treeBuilder) findSplit(p *pendingNode) *splitCandidate {
	if len(p.rows) < 2 {
		return nil
	}
	parent := b.cfg.score(p.g, p.h)
	var best *splitCandidate

	for _, f := range b.features {
		col := b.cols[f]

		// non-missing 합계
		var gv, hv float64
		for _, r := range b.sorted[f] {
			if b.inNode[r] == p.node {
				gv += b.grad[r]
				hv += b.hess[r]
			}
		}
		gm, hm := p.g-gv, p.h-hv

		var gl, hl float64
		prev := math.NaN()
		for _, r := range b.sorted[f] {
			if b.inNode[r] != p.node {
				continue
			}
			v := col[r]
			if !math.IsNaN(prev) && v > prev {
				threshold := prev + (v-prev)/2
				for _, missLeft := range []bool{true, false} {
					l, lh := gl, hl
					if missLeft {
						l, lh = gl+gm, hl+hm
					}
					rg, rh := p.g-l, p.h-lh
					if lh < b.cfg.minChildWeight || rh < b.cfg.minChildWeight {
						continue
					}
					gain := 0.5*(b.cfg.score(l, lh)+b.cfg.score(rg, rh)-parent) - b.cfg.gamma
					if gain > 1e-12 && (best == nil || gain > best.gain) {
						best = &splitCandidate{feature: f, threshold: threshold, defaultLeft: missLeft, gain: gain}
					}
				}
			}
			gl += b.grad[r]
			hl += b.hess[r]
			prev = v
		}
	}
	return best
}
