package pipeline

import (
	"sync"
)

// GroupWaiter is a wrapper around sync.WaitGroup.
// It implements the components.ComponentWaiter interface so a sync run can wait
// for every launched component goroutine to finish.
type GroupWaiter struct {
	wg sync.WaitGroup
}

func (gw *GroupWaiter) Add() {
	gw.wg.Add(1)
}

func (gw *GroupWaiter) Done() {
	gw.wg.Done()
}

func (gw *GroupWaiter) Wait() {
	gw.wg.Wait()
}
