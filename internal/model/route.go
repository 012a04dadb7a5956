package model

import "fmt"

// VersionPolicy controls how strictly the downstream HTTP version is negotiated.
type VersionPolicy string

// Supported version policies.
const (
	VersionOrLower  VersionPolicy = "RequestVersionOrLower"
	VersionOrHigher VersionPolicy = "RequestVersionOrHigher"
	VersionExact    VersionPolicy = "RequestVersionExact"
)

// ParseVersionPolicy returns the policy named by s. An empty string selects VersionOrLower.
func ParseVersionPolicy(s string) (VersionPolicy, error) {
	switch p := VersionPolicy(s); p {
	case "":
		return VersionOrLower, nil
	case VersionOrLower, VersionOrHigher, VersionExact:
		return p, nil
	default:
		return "", fmt.Errorf("unknown version policy %q", s)
	}
}

// DownstreamRoute holds the per-route overrides applied while mapping a request.
// It is resolved by the router and never modified during a mapping call.
type DownstreamRoute struct {
	Method        string // optional method override
	HTTPVersion   string // e.g. "1.1", "2.0"
	VersionPolicy VersionPolicy
}
