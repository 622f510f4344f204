package types

import (
	"bufio"
	"os"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// File wraps an open os.File; it is Green (acyclic, destroyed the instant
// its refcount hits zero): it holds no cyclable references.
type File struct {
	hdr    *heap.Header
	f      *os.File
	reader *bufio.Reader
	path   string
	closed bool
}

func NewFile(cls *class.Class, f *os.File, path string) *File {
	file := &File{f: f, path: path, reader: bufio.NewReader(f)}
	file.hdr = heap.NewHeader(file, cls, true)
	return file
}

func (f *File) Hdr() *heap.Header { return f.hdr }

func (f *File) Destroy() {
	if !f.closed {
		f.f.Close()
		f.closed = true
	}
}

func (f *File) Path() string { return f.path }

func (f *File) ReadLine(line int) (string, bool, error) {
	if f.closed {
		return "", false, errors.New(errors.RuntimeError, line, "read from closed file %q", f.path)
	}
	s, err := f.reader.ReadString('\n')
	if err != nil && s == "" {
		return "", false, nil // at_end
	}
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s, true, nil
}

func (f *File) ReadAll(line int) (string, error) {
	if f.closed {
		return "", errors.New(errors.RuntimeError, line, "read from closed file %q", f.path)
	}
	var sb []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.reader.Read(buf)
		sb = append(sb, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(sb), nil
}

func (f *File) Write(line int, s string) error {
	if f.closed {
		return errors.New(errors.RuntimeError, line, "write to closed file %q", f.path)
	}
	_, err := f.f.WriteString(s)
	if err != nil {
		return errors.New(errors.RuntimeError, line, "write to %q failed: %v", f.path, err)
	}
	return nil
}

func (f *File) WriteLine(line int, s string) error { return f.Write(line, s+"\n") }

func (f *File) Seek(line int, offset int64, whence int) error {
	if f.closed {
		return errors.New(errors.RuntimeError, line, "seek on closed file %q", f.path)
	}
	if _, err := f.f.Seek(offset, whence); err != nil {
		return errors.New(errors.RuntimeError, line, "seek on %q failed: %v", f.path, err)
	}
	f.reader.Reset(f.f)
	return nil
}

func (f *File) Tell(line int) (int64, error) {
	off, err := f.f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return 0, errors.New(errors.RuntimeError, line, "tell on %q failed: %v", f.path, err)
	}
	return off - int64(f.reader.Buffered()), nil
}

func (f *File) AtEnd() bool {
	_, err := f.reader.Peek(1)
	return err != nil
}

// Close fsyncs before closing the descriptor, so callers observe durable
// writes rather than whatever the page cache happens to have flushed.
func (f *File) Close(line int) error {
	if f.closed {
		return nil
	}
	fsyncFile(f.f)
	err := f.f.Close()
	f.closed = true
	if err != nil {
		return errors.New(errors.RuntimeError, line, "close of %q failed: %v", f.path, err)
	}
	return nil
}

func toStringFile(o heap.Object, quote bool) string {
	f := o.(*File)
	return "<File " + f.path + ">"
}

func registerFileSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringFile)
}
