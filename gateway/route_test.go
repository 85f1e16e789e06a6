package gateway

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoutingKey(t *testing.T) {
	cases := map[string]string{
		"/svc/health":        "svc",
		"/svc":               "svc",
		"/kyc.Kyc/Ping":      "kyc.Kyc",
		"/":                  "",
		"":                   "",
		"svc/x":              "svc",
		"//double":           "",
		"/ghost/anything/at": "ghost",
	}
	for path, want := range cases {
		require.Equal(t, want, RoutingKey(path), "path %q", path)
	}
}

func TestStripRoutingKey(t *testing.T) {
	cases := map[string]string{
		"/svc/health":   "/health",
		"/svc/a/b/c":    "/a/b/c",
		"/svc":          "/",
		"/svc/":         "/",
		"/":             "/",
		"/kyc.Kyc/Ping": "/Ping",
	}
	for path, want := range cases {
		require.Equal(t, want, StripRoutingKey(path), "path %q", path)
	}
}

func TestConnectTarget(t *testing.T) {
	valid := []string{"127.0.0.1:22", "example.com:443", "[::1]:8080", "h:65535"}
	for _, a := range valid {
		got, ok := ConnectTarget(a)
		require.True(t, ok, a)
		require.Equal(t, a, got)
	}
	invalid := []string{"", "example.com", ":80", "host:0", "host:65536", "host:http", "host:-1", "[::1]"}
	for _, a := range invalid {
		_, ok := ConnectTarget(a)
		require.False(t, ok, a)
	}
}

func TestSocketAddrToURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8080":         "http://127.0.0.1:8080",
		"[::1]:8080":             "http://localhost:8080",
		"[2001:db8::1]:443":      "http://[2001:db8::1]:443",
		"[::ffff:10.0.0.1]:9000": "http://10.0.0.1:9000",
	}
	for in, want := range cases {
		require.Equal(t, want, SocketAddrToURL(netip.MustParseAddrPort(in)), in)
	}
}

func TestParseSocketAddr(t *testing.T) {
	_, err := parseSocketAddr("[::1]:8080")
	require.NoError(t, err)
	for _, bad := range []string{"localhost:8080", "not an address", "127.0.0.1", ""} {
		_, err := parseSocketAddr(bad)
		require.Error(t, err, bad)
	}
}
