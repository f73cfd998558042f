package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// NewProxyFunc returns the proxy selector for the HTTP transport. Explicit
// proxy URLs take precedence; otherwise HTTP_PROXY/HTTPS_PROXY/NO_PROXY apply.
func NewProxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	var httpURL, httpsURL *url.URL
	var err error
	if httpProxy != "" {
		if httpURL, err = url.Parse(httpProxy); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if httpsProxy != "" {
		if httpsURL, err = url.Parse(httpsProxy); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsURL != nil {
			return httpsURL, nil
		}
		if httpURL != nil {
			return httpURL, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}
