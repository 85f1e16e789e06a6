package gateway

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// RoutingKey returns the first path segment, which names the target service:
// "/svc/health" → "svc", "/" → "", "" → "".
func RoutingKey(path string) string {
	key, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return key
}

// StripRoutingKey returns the path a backend sees: everything after the routing key,
// always rooted. "/svc/health" → "/health", "/svc" → "/".
func StripRoutingKey(path string) string {
	_, rest, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !found {
		return "/"
	}
	return "/" + rest
}

// ConnectTarget validates a CONNECT authority as host:port with a port in 1..65535.
func ConnectTarget(authority string) (string, bool) {
	host, port, err := net.SplitHostPort(authority)
	if err != nil || host == "" {
		return "", false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return "", false
	}
	return net.JoinHostPort(host, port), true
}

// SocketAddrToURL renders a bound address as a base URL. IPv6 loopback becomes "localhost".
func SocketAddrToURL(addr netip.AddrPort) string {
	ip := addr.Addr().Unmap()
	switch {
	case ip.Is4():
		return fmt.Sprintf("http://%s:%d", ip, addr.Port())
	case ip.IsLoopback():
		return fmt.Sprintf("http://localhost:%d", addr.Port())
	default:
		return fmt.Sprintf("http://[%s]:%d", ip, addr.Port())
	}
}

// parseSocketAddr accepts only literal ip:port addresses.
func parseSocketAddr(address string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("gateway: invalid address %q: %w", address, err)
	}
	return ap, nil
}
