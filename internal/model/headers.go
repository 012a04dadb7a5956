package model

// HopByHopHeaders are meaningful only for a single connection and are
// stripped from inbound requests and downstream responses (RFC 7230 6.1).
var HopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}
