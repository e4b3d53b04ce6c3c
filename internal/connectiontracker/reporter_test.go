package connectiontracker

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestReporterName(t *testing.T) {
	trk := New("127.0.0.1:443")
	if trk.Name() != "Conn Track" {
		t.Error("Unexpected Name()", trk.Name())
	}
	if rep := trk.Report(false); !strings.HasSuffix(rep, " 127.0.0.1:443") {
		t.Error("Report should end with the listener name", rep)
	}
}

const (
	zero = "curr=0 pk=0 reqs=0 pkMux=0 errs=0 (0/0/0/0/0/0) connFor=0.0s activeFor=0.0s L"
	one  = "curr=1 pk=1 reqs=1 pkMux=0 errs=0 (0/0/0/0/0/0) connFor=0.0s activeFor=0.0s L"
	kept = "curr=1 pk=1 reqs=0 pkMux=0 errs=0 (0/0/0/0/0/0) connFor=0.0s activeFor=0.0s L"
)

func TestReporterReset(t *testing.T) {
	trk := New("L")
	if rep := trk.Report(false); rep != zero {
		t.Error("Expected", zero, "got", rep)
	}

	now := time.Now()
	trk.ConnState("a", now, http.StateNew)
	trk.RequestStart("a")
	trk.RequestDone("a")
	if rep := trk.Report(true); rep != one {
		t.Error("Expected", one, "got", rep)
	}

	// Open connections survive a reset and set the new peak
	if rep := trk.Report(false); rep != kept {
		t.Error("Expected", kept, "got", rep)
	}

	trk.ConnState("a", now, http.StateClosed)
	trk.Report(true)
	if rep := trk.Report(false); rep != zero {
		t.Error("Expected", zero, "after close and reset, got", rep)
	}
}
