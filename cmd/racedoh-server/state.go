package main

import (
	"sync/atomic"
)

// mainStateType lets tests see when mainExecute() has its listeners up and when it has shut them
// down. Production code only ever sets it.
type mainStateType int32

const (
	initial mainStateType = iota
	started
	stopped
)

var currentMainState atomic.Int32

func mainState(s mainStateType) {
	currentMainState.Store(int32(s))
}

func isMain(s mainStateType) bool {
	return mainStateType(currentMainState.Load()) == s
}
