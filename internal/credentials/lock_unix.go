// ABOUTME: Exclusive advisory file locking on Unix via flock(2)
// ABOUTME: Guards the credentials read-modify-write against concurrent processes

//go:build unix

package credentials

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockFile(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
