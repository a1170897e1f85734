// Package termclass classifies a file descriptor's underlying file type
// the way stdin must be classified before the bridge can decide whether
// to scan it for EOT and whether to probe it for pipe hangups, grounded
// on original_source/swd2.c's stdin_file_type_or_die.
package termclass

import (
	"fmt"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// Kind is the classification of a descriptor's file type.
type Kind int

const (
	// TTY is a character device that is also a terminal.
	TTY Kind = iota
	// Pipe is a FIFO or socket: EOF arrives as a hangup, not a byte
	// count of zero necessarily preceding it.
	Pipe
	// Regular is an ordinary file. Block devices are not classified as
	// Regular; Classify reports them as an error.
	Regular
)

func (k Kind) String() string {
	switch k {
	case TTY:
		return "tty"
	case Pipe:
		return "pipe"
	case Regular:
		return "regular"
	default:
		return "unknown"
	}
}

// Classify fstats fd and reports its Kind. A character device that is
// not a TTY, or any other file type fstat can report, is an error: the
// bridge has no defined behavior for it (spec.md §4.G/§7).
func Classify(fd int) (Kind, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFIFO, unix.S_IFSOCK:
		return Pipe, nil
	case unix.S_IFCHR:
		if !isatty.IsTerminal(uintptr(fd)) {
			return 0, fmt.Errorf("character device on fd %d is not a TTY", fd)
		}
		return TTY, nil
	case unix.S_IFREG:
		return Regular, nil
	default:
		return 0, fmt.Errorf("unsupported file type: 0%o", st.Mode&unix.S_IFMT)
	}
}
