package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Response is what the server sends for one request.
type Response struct {
	Status int
	// Body is sent verbatim when Lines is empty.
	Body  string
	Lines []string
	// Hold keeps the connection open after the lines until the client goes away.
	Hold bool
}

// Responder picks the response for the n-th request (0-based).
type Responder interface {
	Respond(n int, body []byte) Response
}

type ResponderFunc func(n int, body []byte) Response

func (f ResponderFunc) Respond(n int, body []byte) Response { return f(n, body) }

// Script answers requests in order. Requests beyond the script get the
// last response again.
func Script(responses ...Response) Responder {
	return ResponderFunc(func(n int, _ []byte) Response {
		if len(responses) == 0 {
			return Response{Status: http.StatusInternalServerError, Body: "empty script"}
		}
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n]
	})
}

// Server is a scripted chat completions endpoint speaking newline-delimited
// JSON. Output is written in ChunkSize pieces with Delay between them.
type Server struct {
	responder Responder
	ChunkSize int
	Delay     time.Duration

	mu       sync.Mutex
	requests []Request
}

// Request is a recorded inbound call.
type Request struct {
	Header http.Header
	Body   []byte
}

func New(responder Responder) *Server {
	return &Server{responder: responder}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, Request{Header: r.Header.Clone(), Body: body})
	s.mu.Unlock()

	resp := s.responder.Respond(n, body)
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if len(resp.Lines) == 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp.Body)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(status)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	payload := strings.Join(resp.Lines, "\n") + "\n"
	for _, chunk := range chunks(payload, s.ChunkSize) {
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if resp.Hold {
		<-r.Context().Done()
	}
}

// chunks cuts s into byte slices of at most size; size <= 0 means one chunk.
func chunks(s string, size int) []string {
	if size <= 0 || size >= len(s) {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(s); start += size {
		out = append(out, s[start:min(start+size, len(s))])
	}
	return out
}

// Start serves on a loopback port until ctx is cancelled or stop is called.
// The returned URL is the chat endpoint.
func (s *Server) Start(ctx context.Context) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("mockapi listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/v2/chat", s)
	mux.Handle("/v1/chat", s)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Mock API server failed", "error", err)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
			}
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	url := "http://" + ln.Addr().String() + "/v2/chat"
	slog.Debug("Mock API listening", "url", url)
	return url, stop, nil
}
