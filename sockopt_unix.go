//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package evtcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// listenControl applies the listener-level options before bind(2).
func listenControl(opts SocketOptions) func(network, address string, rc syscall.RawConn) error {
	return func(network, address string, rc syscall.RawConn) error {
		var opErr error
		err := rc.Control(func(fd uintptr) {
			if opts.ReuseAddr != nil {
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(*opts.ReuseAddr)); opErr != nil {
					return
				}
			}
			if opts.ReusePort != nil {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, boolInt(*opts.ReusePort))
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

// applyConnOptions applies the per-connection options to an accepted fd.
func applyConnOptions(fd int, opts SocketOptions) error {
	if opts.NoDelay != nil {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(*opts.NoDelay)); err != nil {
			return err
		}
	}
	if opts.KeepAlive != nil {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolInt(*opts.KeepAlive)); err != nil {
			return err
		}
	}
	return nil
}
