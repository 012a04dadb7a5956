package mapper

import "net/http"

// mapHeaders copies every header of src not excluded by policy onto dst.
// Keys are copied as-is and values are not validated.
func mapHeaders(policy *HeaderPolicy, src, dst http.Header) {
	for key, vals := range src {
		if policy.Excluded(key) || len(vals) == 0 {
			continue
		}
		dst[key] = append(dst[key], vals...)
	}
}
