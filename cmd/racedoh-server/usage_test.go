package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

type testUsageCase struct {
	expectToRun bool     // waitForExecute should not return an error if this is true
	args        []string // ARGV - not counting command
	stdout      []string // Expected stdout strings
	stderr      string   // Expected stderr string
}

var testUsageCases = []testUsageCase{
	{false, []string{"--version"}, []string{"racedoh-server", "Version:"}, ""},
	{false, []string{"-h"}, []string{"NAME", "SYNOPSIS", "OPTIONS", "X-Racer-Ms", "Version: v"}, ""},
	{false, []string{"-badopt"}, []string{}, "flag provided but not defined"},
	{false, []string{"-v", "-A", "255.254.253.252"}, []string{"Starting"},
		"assign requested address"},

	// Bad upstreams
	{false, []string{"-u", "https:///nohost"}, []string{}, "does not contain a hostname"},
	{false, []string{"https://a.example/dns-query", "https://a.example/dns-query"}, []string{}, "Duplicate"},

	// Bad engine settings
	{false, []string{"-k", "-1"}, []string{}, "Fanout is negative"},
	{false, []string{"-t", "-1s"}, []string{}, "AttemptTimeout is negative"},
	{false, []string{"-r", "0"}, []string{}, "Minimum remote concurrency"},
	{false, []string{"--cache-ttl", "-1s"}, []string{}, "TTL"},
	{false, []string{"--cache-size", "-1"}, []string{}, "MaxEntries"},
	{false, []string{"--rate-limit", "-1"}, []string{}, "Limit"},
	{false, []string{"--rate-window", "-1s"}, []string{}, "Window"},

	// tls
	{false, []string{"--tls-cert", "testdata/nosuchfile"}, []string{}, "Certificate file count"},
	{false, []string{"--tls-key", "testdata/nosuchfile"}, []string{}, "key file count"},
	{false, []string{"--tls-upstream-roots", "testdata/nosuchfile"}, []string{}, "otherCA failed"},
	{false, []string{"--tls-upstream-no-check", "--tls-upstream-roots", "x"}, []string{}, "verification disabled"},
}

func TestUsage(t *testing.T) {
	for tx, tc := range testUsageCases {
		t.Run(fmt.Sprintf("%d", tx), func(t *testing.T) {
			args := append([]string{"racedoh-server"}, tc.args...)
			out := &bytes.Buffer{}
			err := &bytes.Buffer{}
			mainInit(out, err)
			done := make(chan error)
			go func() {
				done <- waitForMainExecute(t, time.Millisecond*200)
			}()
			ec := mainExecute(args)
			e := <-done // Get waitForExecute results
			outStr := out.String()
			errStr := err.String()

			if e != nil && tc.expectToRun {
				t.Fatal("Expected to run, but", e, errStr, outStr)
			}
			if ec == 0 && len(tc.stderr) > 0 {
				t.Error("Expected error exit from Execute() with stderr", tc.stderr)
			}

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

// Privilege dropping works on every unix so the help text carries no platform caveats.
func TestUsageConstraintText(t *testing.T) {
	out := &bytes.Buffer{}
	mainInit(out, &bytes.Buffer{})
	mainExecute([]string{"racedoh-server", "-h"})
	help := out.String()
	if strings.Contains(help, "disabled for Linux") {
		t.Error("Help text still claims setuid/setgid are disabled for Linux")
	}
	for _, s := range []string{"setuid", "setgid", "STATUS CODES", "ignored"} {
		if !strings.Contains(help, s) {
			t.Error("Help text missing", s)
		}
	}
	if strings.Contains(help, "415") {
		t.Error("Help text still documents a 415 response")
	}
}
