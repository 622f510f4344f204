//go:build unix

package types

import (
	"os"

	"golang.org/x/sys/unix"
)

func fsyncFile(f *os.File) { unix.Fsync(int(f.Fd())) }
