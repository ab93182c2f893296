package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalHandler turns an interrupt into a cancellation of the running
// exchange. An interrupt with nothing running, or SIGTERM, shuts down.
type SignalHandler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	sigChan   chan os.Signal
	interrupt func() bool
	wg        sync.WaitGroup
}

func NewSignalHandler(ctx context.Context, interrupt func() bool) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	return &SignalHandler{
		ctx:       ctx,
		cancel:    cancel,
		sigChan:   sigChan,
		interrupt: interrupt,
	}
}

func (s *SignalHandler) Context() context.Context {
	return s.ctx
}

func (s *SignalHandler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case sig := <-s.sigChan:
				if sig == os.Interrupt && s.interrupt != nil && s.interrupt() {
					continue
				}
				fmt.Println("\nReceived shutdown signal...")
				s.cancel()
				return
			}
		}
	}()
}

func (s *SignalHandler) Wait() {
	s.wg.Wait()
}

func (s *SignalHandler) Stop() {
	signal.Stop(s.sigChan)
	s.cancel()
	s.Wait()
}
