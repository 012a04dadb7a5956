package mapper

import "gateway-proxy-go/internal/model"

// mapMethod returns the route's method override, or the inbound method verbatim.
func mapMethod(in *model.InboundRequest, route model.DownstreamRoute) string {
	if route.Method != "" {
		return route.Method
	}
	return in.Method
}
