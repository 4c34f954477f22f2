package httpapi

import (
	"crypto/tls"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"network-monitor/internal/infrastructure/config"
)

func newTransport(cfg config.Config) *http.Transport {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.InsecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	// Enable HTTP/2 for outbound HTTPS where possible. Safe to ignore error and fall back to HTTP/1.1
	_ = http2.ConfigureTransport(tr)
	return tr
}
