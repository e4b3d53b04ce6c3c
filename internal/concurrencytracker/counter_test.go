package concurrencytracker

import (
	"sync"
	"testing"
)

func TestPeakAndReset(t *testing.T) {
	var c Counter
	steps := []struct {
		op      string // "+", "-", "p" (peak) or "r" (peak with reset)
		peak    int    // Expected return for "p" and "r"
		current int
	}{
		{"p", 0, 0},
		{"+", 0, 1},
		{"+", 0, 2},
		{"p", 2, 2},
		{"-", 0, 1},
		{"r", 2, 1}, // Reset takes effect after the return
		{"p", 1, 1},
		{"-", 0, 0},
		{"r", 1, 0},
		{"p", 0, 0},
	}

	for sx, s := range steps {
		switch s.op {
		case "+":
			c.Add()
		case "-":
			c.Done()
		case "p", "r":
			if p := c.Peak(s.op == "r"); p != s.peak {
				t.Error(sx, "Expected peak", s.peak, "got", p)
			}
		}
		if cur := c.Current(); cur != s.current {
			t.Error(sx, "Expected current", s.current, "got", cur)
		}
	}
}

func TestAddReportsNewPeak(t *testing.T) {
	var c Counter
	if !c.Add() || !c.Add() {
		t.Error("First two Adds should each set a new peak")
	}
	c.Done()
	if c.Add() {
		t.Error("Returning to a previous peak is not a new peak", c.Peak(false))
	}
}

func TestConcurrentAddDone(t *testing.T) {
	var c Counter
	start := make(chan struct{})
	wg := &sync.WaitGroup{}
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for ix := 0; ix < 100; ix++ {
				c.Add()
				c.Done()
			}
		}()
	}
	close(start)
	wg.Wait()

	if c.Current() != 0 {
		t.Error("Unbalanced Add/Done left current at", c.Current())
	}
	if p := c.Peak(false); p < 1 || p > 20 {
		t.Error("Peak should be between 1 and 20, not", p)
	}
}

func TestDoneWithoutAddPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic from an unmatched Done()")
		}
	}()
	var c Counter
	c.Done()
}
