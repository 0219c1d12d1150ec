// ABOUTME: HTTP client for image downloads with bounded connect, TLS and header timeouts
// ABOUTME: Proxy settings come from the environment; TLS 1.2 is the minimum

package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DownloadClient returns a client for fetching generated images. timeout
// bounds the whole exchange including the body.
func DownloadClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       30 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   4,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

const maxRedirects = 5
