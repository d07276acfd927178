package graph

// pathHeap is a min-heap of candidate paths ordered by cost, equal costs
// ordered by the store tie-break.
type pathHeap struct {
	items    []Path
	tieBreak TieBreak
}

func (h *pathHeap) Len() int {
	return len(h.items)
}

// whether p1 < p2
func (h *pathHeap) less(p1, p2 Path) bool {
	if p1.Cost != p2.Cost {
		return p1.Cost < p2.Cost
	}
	return h.tieBreak(p1, p2)
}

// adjust minHeap from up to down
func (h *pathHeap) shiftDown(start, end int) {
	dad := start
	son := dad*2 + 1
	for son <= end {
		if son+1 <= end && h.less(h.items[son+1], h.items[son]) { // choose the smaller son
			son++
		}
		if !h.less(h.items[son], h.items[dad]) {
			break
		}
		h.items[dad], h.items[son] = h.items[son], h.items[dad]
		dad = son
		son = dad*2 + 1
	}
}

// adjust minHeap from down to up
func (h *pathHeap) shiftUp(start int) {
	son := start
	dad := (son - 1) / 2
	for son > 0 {
		if !h.less(h.items[son], h.items[dad]) {
			break
		}
		h.items[dad], h.items[son] = h.items[son], h.items[dad]
		son = dad
		dad = (son - 1) / 2
	}
}

func (h *pathHeap) insert(p Path) {
	h.items = append(h.items, p)
	h.shiftUp(len(h.items) - 1)
}

// pop removes and returns the minimum element.
func (h *pathHeap) pop() Path {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	h.shiftDown(0, len(h.items)-1)
	return top
}
