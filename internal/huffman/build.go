// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import "container/heap"

// BuildLengths computes a minimum-redundancy code length for every symbol
// with a non-zero frequency, using the standard greedy binary-merge
// construction (repeatedly combine the two least-frequent nodes). It does
// not enforce maxBits: callers that need a length-limited code (dynamic
// Huffman blocks in the encoder) must check the result and fall back to a
// fixed table if any returned length exceeds their limit, since forcing a
// length limit here would require the considerably more involved
// package-merge construction for a case the encoder can simply avoid.
//
// The returned slice has the same length as freqs; symbols with freq == 0
// get length 0 (unused). A single active symbol still gets length 1, since
// RFC 1951 requires every code to be at least one bit.
func BuildLengths(freqs []uint32) (lengths []uint8, err error) {
	lengths = make([]uint8, len(freqs))

	type node struct {
		freq   uint32
		sym    uint16
		isLeaf bool
		left   int
		right  int
	}
	var nodes []node

	pq := &nodeHeap{}
	heap.Init(pq)
	seq := 0
	active := 0
	for sym, f := range freqs {
		if f == 0 {
			continue
		}
		nodes = append(nodes, node{freq: f, sym: uint16(sym), isLeaf: true, left: -1, right: -1})
		heap.Push(pq, heapItem{freq: f, idx: len(nodes) - 1, seq: seq})
		seq++
		active++
	}

	switch active {
	case 0:
		return lengths, nil
	case 1:
		lengths[nodes[0].sym] = 1
		return lengths, nil
	}

	for pq.Len() > 1 {
		a := heap.Pop(pq).(heapItem)
		b := heap.Pop(pq).(heapItem)
		nodes = append(nodes, node{freq: a.freq + b.freq, left: a.idx, right: b.idx})
		heap.Push(pq, heapItem{freq: a.freq + b.freq, idx: len(nodes) - 1, seq: seq})
		seq++
	}
	root := heap.Pop(pq).(heapItem)

	var walk func(idx, depth int)
	walk = func(idx, depth int) {
		n := nodes[idx]
		if n.isLeaf {
			lengths[n.sym] = uint8(depth)
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root.idx, 0)
	return lengths, nil
}

// heapItem is a container/heap element ordering nodes by ascending
// frequency, with insertion order as a tie-break to keep BuildLengths
// deterministic for identical input frequencies.
type heapItem struct {
	freq uint32
	idx  int
	seq  int
}

type nodeHeap []heapItem

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) {
	*h = append(*h, x.(heapItem))
}
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
