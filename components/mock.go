package components

import "sync"

// MockComponentWaiter lets tests block until a component goroutine has exited.
type MockComponentWaiter struct {
	wg sync.WaitGroup
}

func (cw *MockComponentWaiter) Add() {
	cw.wg.Add(1)
}

func (cw *MockComponentWaiter) Done() {
	cw.wg.Done()
}

func (cw *MockComponentWaiter) Wait() {
	cw.wg.Wait()
}
