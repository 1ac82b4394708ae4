package util

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// SockaddrToAddr converts a raw socket address into a *net.TCPAddr.
// It returns nil for address families other than inet4/inet6.
func SockaddrToAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{
			IP:   append(net.IP{}, sa.Addr[:]...),
			Port: sa.Port,
		}
	case *unix.SockaddrInet6:
		var zone string
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		return &net.TCPAddr{
			IP:   append(net.IP{}, sa.Addr[:]...),
			Port: sa.Port,
			Zone: zone,
		}
	}
	return nil
}

// SplitAddr returns the textual ip and port of addr, or ("", 0).
func SplitAddr(addr *net.TCPAddr) (string, int) {
	if addr == nil {
		return "", 0
	}
	if v4 := addr.IP.To4(); v4 != nil {
		return v4.String(), addr.Port
	}
	return addr.IP.String(), addr.Port
}

// JoinAddr formats transport://ip:port.
func JoinAddr(transport, ip string, port int) string {
	return transport + "://" + net.JoinHostPort(ip, strconv.Itoa(port))
}

// TemporaryErr reports whether err is an errno that is worth retrying.
func TemporaryErr(err error) bool {
	errno, ok := err.(unix.Errno)
	if !ok {
		return false
	}
	return errno.Temporary()
}

// WouldBlock reports whether a non-blocking syscall had nothing to do.
func WouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}
