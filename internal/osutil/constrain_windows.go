//go:build windows

package osutil

import (
	"errors"
)

// Constrain is not supported on Windows. It is only an error if a constraint was requested.
func Constrain(userName, groupName, chrootDir string) error {
	if len(userName)+len(groupName)+len(chrootDir) > 0 {
		return errors.New("osutil.Constrain: setuid/setgid/chroot not supported on Windows")
	}

	return nil
}

func ConstraintReport() string {
	return "unconstrained"
}
