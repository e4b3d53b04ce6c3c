package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type mainTestCase struct {
	description string
	needsRoot   bool          // Only run if we're setuid 0
	willRunFor  time.Duration // racedoh-server should run for this amount of time before being terminated
	args        []string      // ARGV - not counting command
	stdout      []string      // Expected stdout strings
	stderr      string        // Expected stderr string
}

var mainTestCases = []mainTestCase{
	{"Default upstreams",
		false, 100 * time.Millisecond, []string{"-A", "127.0.0.1:63081", "-v"},
		[]string{"Starting", "Racing 8 of 32 upstreams", "Exiting"}, ""},

	{"Explicit upstreams and fanout",
		false, 100 * time.Millisecond, []string{"-A", "127.0.0.1:63082", "-v", "-k", "2",
			"-u", "https://a.example/dns-query", "b.example", "c.example"},
		[]string{"Racing 2 of 3 upstreams", "Exiting"}, ""},

	{"Engine settings",
		false, 100 * time.Millisecond, []string{"-A", "127.0.0.1:63083", "-v", "-t", "2s",
			"--cache-ttl", "10s", "--cache-size", "100", "--rate-limit", "10", "--rate-window", "1s",
			"--client-ip-header", "CF-Connecting-IP", "--tls-upstream-no-check"},
		[]string{"Starting", "Exiting"}, ""},

	{"Logging",
		false, 100 * time.Millisecond,
		[]string{"-v", "--log-all", "-A", "127.0.0.1:63084"},
		[]string{"Starting", "Exiting"}, ""},

	{"gops agent",
		false, 100 * time.Millisecond, []string{"-A", "127.0.0.1:63085", "--gops"}, []string{}, ""},

	{"Wildcard listen address - may not work on some systems",
		true, time.Millisecond, []string{}, []string{}, ""},

	{"Status report",
		false, 2 * time.Second, []string{"-v", "-i", "1s", "-A", "127.0.0.1:63086"},
		[]string{"Listening: (HTTP on", "Status Registry: score=100", "Status Engine: rcvd=0"}, ""},
}

func TestMainExecute(t *testing.T) {
	uid := os.Getuid()
	for tx, tc := range mainTestCases {
		t.Run(fmt.Sprintf("%d %s", tx, tc.description), func(t *testing.T) {
			if tc.needsRoot && uid != 0 {
				t.Skip("Skipping setuid=0 test as not running as root")
				return
			}

			args := append([]string{"racedoh-server"}, tc.args...)
			out := &bytes.Buffer{}
			err := &bytes.Buffer{}
			mainInit(out, err)
			done := make(chan error)
			go func() {
				done <- waitForMainExecute(t, tc.willRunFor)
			}()
			ec := mainExecute(args)
			e := <-done // Get waitForMainExecute results
			if e != nil {
				t.Fatal(e)
			}
			if ec != 0 && tc.willRunFor > 0 {
				t.Error("Zero Exit code expected, not:", ec, err.String())
			}

			outStr := out.String()
			errStr := err.String()
			if len(errStr) > 0 && len(tc.stderr) == 0 {
				t.Error("Did not expect a fatal error:", errStr)
			}
			if !strings.Contains(errStr, tc.stderr) {
				t.Error("Stderr expected:", tc.stderr, "Got:", errStr)
			}

			for _, o := range tc.stdout {
				if !strings.Contains(outStr, o) {
					t.Error("Stdout expected:", o, "Got:", outStr)
				}
			}
		})
	}
}

// Profile files are created in a temporary directory.
func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	args := []string{"racedoh-server", "-A", "127.0.0.1:63087",
		"--cpu-profile", filepath.Join(dir, "cpu"), "--mem-profile", filepath.Join(dir, "mem")}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	mainInit(out, errOut)
	done := make(chan error)
	go func() {
		done <- waitForMainExecute(t, 100*time.Millisecond)
	}()
	if ec := mainExecute(args); ec != 0 {
		t.Fatal("Expected zero exit, got", ec, errOut.String())
	}
	if e := <-done; e != nil {
		t.Fatal(e)
	}
	for _, f := range []string{"cpu", "mem"} {
		if fi, err := os.Stat(filepath.Join(dir, f)); err != nil || fi.Size() == 0 {
			t.Error("Profile", f, "not written", err)
		}
	}
}

// End to end through mainExecute with a local upstream.
func TestMainServes(t *testing.T) {
	var upstreamCalls atomic.Int32
	ups := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Header().Set("Content-Type", "application/dns-message")
		w.Write([]byte("opaque-response-bytes"))
	}))
	defer ups.Close()

	args := []string{"racedoh-server", "-A", "127.0.0.1:63088", ups.URL + "/dns-query"}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	mainInit(out, errOut)
	type result struct {
		status int
		cache  string
	}
	results := make(chan result, 2)
	go func() {
		for ix := 0; ix < 10 && !isMain(started); ix++ {
			time.Sleep(100 * time.Millisecond)
		}
		for ix := 0; ix < 2; ix++ {
			var resp *http.Response
			var err error
			for try := 0; try < 10; try++ { // Listener may not quite be up yet
				resp, err = http.Post("http://127.0.0.1:63088/dns-query", "application/dns-message",
					strings.NewReader("opaque-query-bytes"))
				if err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
			if err != nil {
				results <- result{}
				continue
			}
			resp.Body.Close()
			results <- result{resp.StatusCode, resp.Header.Get("X-Cache")}
		}
		stopMain()
	}()
	if ec := mainExecute(args); ec != 0 {
		t.Fatal("Expected zero exit, got", ec, errOut.String())
	}
	r1, r2 := <-results, <-results
	if r1.status != 200 || r1.cache != "" {
		t.Error("First request should be a 200 race result", r1)
	}
	if r2.status != 200 || r2.cache != "HIT" {
		t.Error("Second request should be a 200 cache HIT", r2)
	}
	if upstreamCalls.Load() != 1 {
		t.Error("Upstream should be called exactly once, not", upstreamCalls.Load())
	}
}

// waitForMainExecute is a helper routine which makes sure that main mainExecute() function starts
// up and terminates as expected.
func waitForMainExecute(t *testing.T, howLong time.Duration) error {
	for ix := 0; ix < 10; ix++ { // Wait for up to one second for main to get running
		if isMain(started) {
			break
		}
		time.Sleep(time.Millisecond * 100)
	}
	if !isMain(started) {
		return fmt.Errorf("main did not start after a second for %s", t.Name())
	}
	time.Sleep(howLong)          // Give it the designated time to complete
	stopMain()                   // Then ask it to finished up
	for ix := 0; ix < 10; ix++ { // Wait for up to two seconds for main to terminate
		if isMain(stopped) {
			break
		}
		time.Sleep(time.Millisecond * 200)
	}
	if !isMain(stopped) {
		return fmt.Errorf("main did not stop two seconds after stopMain() call for %s", t.Name())
	}

	return nil
}

func TestNextInterval(t *testing.T) {
	tt := []struct {
		now      time.Time
		interval time.Duration
		nextIn   time.Duration
	}{
		// mod(01:01:01, minute)++ -> 01:02:00 needs 59s
		{time.Date(2019, 5, 7, 1, 1, 1, 0, time.UTC), time.Minute, time.Second * 59},
		// mod(01:13:58, 15m)++ -> 01:15:00 needs 1m2s
		{time.Date(2019, 5, 7, 1, 13, 58, 0, time.UTC), time.Minute * 15, time.Minute + time.Second*2},
		// mod(01:01:01, hour)++ -> 02:00:00 needs 58m59s
		{time.Date(2019, 5, 7, 1, 1, 1, 0, time.UTC), time.Hour, time.Minute*58 + time.Second*59},
	}

	for tx, tc := range tt {
		t.Run(fmt.Sprintf("%d", tx), func(t *testing.T) {
			nextIn := nextInterval(tc.now, tc.interval)
			if nextIn != tc.nextIn {
				t.Error("nextIn NE:now", tc.now, "Int", tc.interval, "Want", tc.nextIn, "Got", nextIn)
			}
		})
	}
}

// Test that SIGUSR1 causes a stats report
func TestUSR1(t *testing.T) {
	out := &bytes.Buffer{}
	err := &bytes.Buffer{}
	args := []string{"racedoh-server", "-A", "127.0.0.1:60443"}
	mainInit(out, err) // Start up quietly
	go func() {
		stopChannel <- syscall.SIGUSR1
		time.Sleep(time.Millisecond * 200) // Give it time to process
		stopMain()
	}()
	ec := mainExecute(args)
	outStr := out.String()
	errStr := err.String()
	if ec != 0 {
		t.Error("Expected zero exit return, not", ec, errStr)
	}
	for _, want := range []string{"User1 Listener:", "User1 Race: Totals:", "User1 Cache:", "User1 Rate Limiter:"} {
		if !strings.Contains(outStr, want) {
			t.Error("Expected", want, "got", outStr)
		}
	}
}
