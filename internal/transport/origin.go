package transport

import "net/url"

// buildOriginChecker returns a websocket.Upgrader.CheckOrigin function that
// accepts only the scheme+host pairs in allowed, plus requests that carry
// no Origin header at all (non-browser clients).
func buildOriginChecker(allowed []string) func(origin string) bool {
	return func(origin string) bool {
		if origin == "" {
			return true
		}
		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, candidate := range allowed {
			allowedURL, err := url.Parse(candidate)
			if err != nil {
				continue
			}
			if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
				return true
			}
		}
		return false
	}
}
