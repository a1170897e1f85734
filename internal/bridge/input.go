package bridge

import (
	"os"

	"golang.org/x/sys/unix"
)

type inputKind int

const (
	inputStdin inputKind = iota
	inputUpload
)

// InputSelector multiplexes between stdin and an optional upload file,
// exposing exactly one active file descriptor at a time (spec.md §3/§4.G).
type InputSelector struct {
	stdinFD int
	fd      int
	kind    inputKind
	file    *os.File
}

func newInputSelector(stdinFD int) *InputSelector {
	return &InputSelector{stdinFD: stdinFD, fd: stdinFD, kind: inputStdin}
}

// Fd returns the descriptor currently selected for reads.
func (s *InputSelector) Fd() int { return s.fd }

// IsUpload reports whether an upload file is the active source.
func (s *InputSelector) IsUpload() bool { return s.kind == inputUpload }

// OpenUpload opens path read-only, non-blocking, and makes it the active
// source. The previous source (always stdin, by construction) is left
// untouched so CloseUpload can revert to it.
func (s *InputSelector) OpenUpload(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		f.Close()
		return err
	}
	s.file = f
	s.fd = int(f.Fd())
	s.kind = inputUpload
	return nil
}

// CloseUpload closes the active upload file, if any, and reverts to
// stdin. It is a no-op if stdin is already the active source.
func (s *InputSelector) CloseUpload() {
	if s.kind != inputUpload {
		return
	}
	s.file.Close()
	s.file = nil
	s.fd = s.stdinFD
	s.kind = inputStdin
}
