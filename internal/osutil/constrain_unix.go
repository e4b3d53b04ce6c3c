//go:build unix

package osutil

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const me = "osutil.Constrain: "

// Constrain drops the privileges racedoh-server needed to bind its listen sockets. Each step is
// skipped if its parameter is empty.
//
// Names are resolved to ids first while the password and group databases are still reachable, then
// the process chroots, then clears supplementary groups and sets the gid while it still has the
// power to do so. setuid comes last and makes the sequence irreversible. Since Go 1.16 these calls
// apply to every thread on Linux as well as the other unixen.
func Constrain(userName, groupName, chrootDir string) error {
	uid := -1
	gid := -1
	if len(userName) > 0 {
		u, err := user.Lookup(userName)
		if err != nil {
			return fmt.Errorf(me+"Lookup failed: %w", err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return fmt.Errorf(me+"Non-numeric UID %s: %w", u.Uid, err)
		}
	}

	if len(groupName) > 0 {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return fmt.Errorf(me+"Could not look up group %s: %w", groupName, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return fmt.Errorf(me+"Non-numeric GID %s: %w", g.Gid, err)
		}
	}

	if len(chrootDir) > 0 {
		if err := os.Chdir(chrootDir); err != nil {
			return fmt.Errorf(me+"Could not cd to %s: %w", chrootDir, err)
		}
		if err := unix.Chroot(chrootDir); err != nil {
			return fmt.Errorf(me+"Could not chroot to %s: %w", chrootDir, err)
		}
		if err := os.Chdir("/"); err != nil {
			return fmt.Errorf(me+"Could not cd to /: %w", err)
		}
	}

	if gid != -1 {
		if err := unix.Setgroups([]int{}); err != nil {
			return fmt.Errorf(me+"Could not clear group list: %w", err)
		}
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf(me+"Could not setgid to %d/%s: %w", gid, groupName, err)
		}
	}

	if uid != -1 {
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf(me+"Could not setuid to %d/%s: %w", uid, userName, err)
		}
	}

	return nil
}

// ConstraintReport returns the uid, gid, supplementary groups and cwd of the process so the
// operator can see the effect of Constrain().
func ConstraintReport() string {
	cwd, _ := os.Getwd()
	groups, _ := os.Getgroups()
	gs := make([]string, 0, len(groups))
	for _, g := range groups {
		gs = append(gs, strconv.Itoa(g))
	}

	return fmt.Sprintf("uid=%d gid=%d (%s) cwd=%s", os.Getuid(), os.Getgid(), strings.Join(gs, ","), cwd)
}
