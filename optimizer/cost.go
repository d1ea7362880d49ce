package optimizer

import "github.com/prismquery/planner/graph"

// Cost is the DP optimizer's three-term cost estimate for a (sub)plan node.
// Units are deliberately uncalibrated relative to any real execution engine
// — this module never executes anything, it only orders joins — so Cost is
// a comparison device between alternative plans for the same subset, not an
// absolute prediction.
type Cost struct {
	CPU    float64
	IO     float64
	Memory float64
}

// Weights for combining Cost into a single comparable total. CPU dominates
// per spec: row-count-proportional processing work is the primary cost
// driver, I/O a secondary concern, memory pressure a tiebreaker only.
const (
	cpuWeight = 1.0
	ioWeight  = 0.1
	memWeight = 0.01
)

// Total combines the three terms into a single comparable scalar.
func (c Cost) Total() float64 {
	return c.CPU*cpuWeight + c.IO*ioWeight + c.Memory*memWeight
}

// joinCost computes the cost of joining two subplans whose own costs and
// row estimates are known, per spec's cost model:
// cpu = left.cpu + right.cpu + output_rows
// io = left.io + right.io + 0.1 * output_rows
// memory = max(left.memory, right.memory, output_rows)
func joinCost(left, right Cost, outputRows float64) Cost {
	return Cost{
		CPU:    left.CPU + right.CPU + outputRows,
		IO:     left.IO + right.IO + 0.1*outputRows,
		Memory: max3(left.Memory, right.Memory, outputRows),
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// estimateOutputRows applies the cardinality formula for a join edge:
//
//	1:1  -> min(left, right)
//	1:N  -> right
//	N:1  -> left
//	N:N  -> left * right / max(distinctLeft, distinctRight)
//
// distinctLeft/distinctRight are the join columns' estimated distinct
// counts on each side; for an N:N edge with no distinct-count metadata
// available, both default to 1 (i.e. the formula degrades to a plain
// cross-product estimate, which callers should treat as a worst case).
func estimateOutputRows(card graph.Cardinality, leftRows, rightRows, distinctLeft, distinctRight float64) float64 {
	switch card {
	case graph.Card1to1:
		return min2(leftRows, rightRows)
	case graph.Card1toN:
		return rightRows
	case graph.CardNto1:
		return leftRows
	case graph.CardNtoN:
		denom := distinctLeft
		if distinctRight > denom {
			denom = distinctRight
		}
		if denom < 1 {
			denom = 1
		}
		return leftRows * rightRows / denom
	default:
		return leftRows * rightRows
	}
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
