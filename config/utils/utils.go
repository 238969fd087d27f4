package utils

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	// A single DNS label, e.g. "rpc" or "cosmos-hub".
	hostLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	// A PostgreSQL URL with credentials, host, port and database.
	dbConnStringRegex = regexp.MustCompile(`^postgres(ql)?://[^:]+:[^@]+@[^:/]+:\d+/[^?]+(\?.*)?$`)
)

// IsValidHostname checks if a string is a valid DNS hostname, e.g. "rpc.cosmos.network".
func IsValidHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if !hostLabelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// IsValidHostPort checks if a string is a "host:port" listen or dial address.
// The host may be empty, e.g. ":9090".
func IsValidHostPort(s string) bool {
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p > 0 && p <= 65535
}

// IsValidDBConnectionString checks if a string is a valid PostgreSQL connection string.
func IsValidDBConnectionString(s string) bool {
	return dbConnStringRegex.MatchString(s)
}
