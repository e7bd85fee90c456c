// SPDX-License-Identifier: EPL-2.0

package scheduler

import "time"

// timerHeap is a min-heap on wake time with FIFO order among equal wakes.
type timerHeap []*task

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].wake != h[j].wake {
		return h[i].wake < h[j].wake
	}
	return h[i].id < h[j].id
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*task))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

func (h timerHeap) peekWake() (time.Duration, bool) {
	if len(h) == 0 {
		return 0, false
	}
	return h[0].wake, true
}
