// ABOUTME: No-op file locking for platforms without flock(2)
// ABOUTME: Atomic replacement still prevents torn credential files there

//go:build !unix

package credentials

import "os"

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
