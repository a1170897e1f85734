package bridge

import "golang.org/x/sys/unix"

// pollHangup performs a zero-timeout poll of fd and reports whether the
// descriptor has hung up with no further input pending (POLLHUP without
// POLLIN). This is the readiness probe DESIGN NOTES §9 calls for: on a
// pipe, read() returning 0 bytes already signals EOF unambiguously, but a
// POLLHUP observation lets readInput short-circuit a cycle instead of
// spending a read() call on a descriptor already known to be closed.
func pollHangup(fd int) (hangup bool, err error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		revents := fds[0].Revents
		return revents&unix.POLLHUP != 0 && revents&unix.POLLIN == 0, nil
	}
}
