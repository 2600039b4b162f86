package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// CheckHost rejects empty or whitespace-only hosts and, when noDNS is
// set, anything that is not a numeric IP.
func CheckHost(host string, noDNS bool) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host is empty")
	}
	if noDNS && net.ParseIP(host) == nil {
		return fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
	}
	return nil
}

// ValidPort reports whether port is a usable TCP port number.
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return ListenerPort(l), nil
}

// ListenerPort returns the TCP port a listener is bound to, or 0.
func ListenerPort(l net.Listener) int {
	if a, ok := l.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
