// Copyright (c) 2023 BVK Chaitanya

package cycle

import "github.com/bvk/volumebot/action"

// Queue is a FIFO of pending sell actions. Failed sells are pushed back to the
// front so that they are retried before any newer sell.
type Queue struct {
	items []*action.Action
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) PushBack(a *action.Action) {
	q.items = append(q.items, a)
}

func (q *Queue) PushFront(a *action.Action) {
	q.items = append([]*action.Action{a}, q.items...)
}

func (q *Queue) PopFront() (*action.Action, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	a := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return a, true
}
