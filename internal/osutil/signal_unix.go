//go:build unix

package osutil

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalNotify relays the stop signals plus SIGUSR1 (report now) to c.
func SignalNotify(c chan os.Signal) {
	signal.Notify(c, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGUSR1)
}

// IsSignalUSR1 returns true for the signal which asks for an immediate status report.
func IsSignalUSR1(s os.Signal) bool {
	return s == syscall.SIGUSR1
}
