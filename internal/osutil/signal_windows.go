//go:build windows

package osutil

import (
	"os"
	"os/signal"
)

// SignalNotify relays interrupts to c. There is no report signal on Windows.
func SignalNotify(c chan os.Signal) {
	signal.Notify(c, os.Interrupt)
}

func IsSignalUSR1(s os.Signal) bool {
	return false
}
