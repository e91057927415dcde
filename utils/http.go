package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls to the identity provider.
// Every authenticated request may hit it, so idle connections are kept warm.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	},
}
