//go:build !unix

package types

import "os"

func fsyncFile(f *os.File) { f.Sync() }
