package client

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultResponseHeaderTimeout = 30 * time.Second
	maxErrorBodyBytes            = 8 << 20
)

func newStreamingHTTPClient(responseHeaderTimeout time.Duration) *http.Client {
	if responseHeaderTimeout <= 0 {
		responseHeaderTimeout = defaultResponseHeaderTimeout
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	// No Client.Timeout: it would cap the whole stream, idleReader guards stalls instead.
	return &http.Client{Transport: transport}
}

// idleReader fires onIdle when no Read returns data for the given window.
// The window does not run while paused.
type idleReader struct {
	r      io.Reader
	window time.Duration
	timer  *time.Timer

	mu      sync.Mutex
	paused  bool
	stopped bool
}

func newIdleReader(r io.Reader, window time.Duration, onIdle func()) *idleReader {
	return &idleReader{
		r:      r,
		window: window,
		timer:  time.AfterFunc(window, onIdle),
	}
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.mu.Lock()
		if !ir.paused && !ir.stopped {
			ir.timer.Reset(ir.window)
		}
		ir.mu.Unlock()
	}
	return n, err
}

func (ir *idleReader) pause() {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	if ir.paused || ir.stopped {
		return
	}
	ir.paused = true
	ir.timer.Stop()
}

func (ir *idleReader) resume() {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	if !ir.paused || ir.stopped {
		return
	}
	ir.paused = false
	ir.timer.Reset(ir.window)
}

func (ir *idleReader) stop() {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	ir.stopped = true
	ir.timer.Stop()
}
