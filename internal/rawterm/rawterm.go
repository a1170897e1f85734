// Package rawterm puts a terminal file descriptor into raw mode as a
// scoped resource: Enter saves the current termios, applies the raw
// settings, and returns a Raw value whose Release restores exactly what
// was there before. It is the Go-idiomatic rendering of the spec's
// "terminal raw-mode setup... treated as a scoped resource" boundary,
// grounded on the teacher's own Termios/ioctl machinery.
package rawterm

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// ioctl request numbers for the generic (non-BSD) termios calls, Linux
// x86/arm layout. TCSETSF additionally flushes unread input, which is
// what a console bridge wants when it seizes the terminal: anything
// typed before raw mode took effect should not leak into the target.
const (
	tcgets  = uintptr(0x5401)
	tcsetsf = uintptr(0x5404)
)

type iflag uint32
type oflag uint32
type cflag uint32
type lflag uint32

const (
	ignbrk iflag = 0000001
	brkint iflag = 0000002
	parmrk iflag = 0000010
	istrip iflag = 0000040
	inlcr  iflag = 0000100
	igncr  iflag = 0000200
	icrnl  iflag = 0000400
	ixon   iflag = 0002000
)

const opost oflag = 0000001

const (
	csize  cflag = 0000060
	cs8    cflag = 0000060
	parenb cflag = 0000400
)

const (
	isig   lflag = 0000001
	icanon lflag = 0000002
	echo   lflag = 0000010
	echonl lflag = 0000100
	iexten lflag = 0100000
)

// termios mirrors the kernel's struct termios (not the BSD-style
// termios2 with separate speed fields): baud rate lives in cflag's CBAUD
// bits, which this package never touches.
type termios struct {
	iflag iflag
	oflag oflag
	cflag cflag
	lflag lflag
	line  byte
	cc    [19]byte
}

func getAttr(fd int) (termios, error) {
	var t termios
	err := ioctl.Ioctl(uintptr(fd), tcgets, uintptr(unsafe.Pointer(&t)))
	return t, err
}

func setAttr(fd int, t *termios) error {
	return ioctl.Ioctl(uintptr(fd), tcsetsf, uintptr(unsafe.Pointer(t)))
}

func (t *termios) makeRaw() {
	t.iflag &^= ignbrk | brkint | parmrk | istrip | inlcr | igncr | icrnl | ixon
	t.oflag &^= opost
	t.lflag &^= echo | echonl | icanon | isig | iexten
	t.cflag &^= csize | parenb
	t.cflag |= cs8
}

// Raw is a terminal put into raw mode, holding the settings needed to put
// it back.
type Raw struct {
	fd       int
	original termios
}

// Enter saves fd's current termios and switches it to raw mode: no echo,
// no line buffering, no signal-generating characters, 8-bit clean. fd
// must refer to a terminal.
func Enter(fd int) (*Raw, error) {
	orig, err := getAttr(fd)
	if err != nil {
		return nil, err
	}
	raw := orig
	raw.makeRaw()
	if err := setAttr(fd, &raw); err != nil {
		return nil, err
	}
	return &Raw{fd: fd, original: orig}, nil
}

// Release restores the termios Enter observed before switching to raw
// mode. Safe to call on a nil *Raw.
func (r *Raw) Release() error {
	if r == nil {
		return nil
	}
	return setAttr(r.fd, &r.original)
}
