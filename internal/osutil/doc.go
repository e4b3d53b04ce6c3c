// Package osutil isolates the OS specific parts of racedoh-server: dropping privileges once the
// listeners are open and mapping signals to the server's stop and report actions.
package osutil
