package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/harunnryd/kaiwa/internal/client"
	"github.com/harunnryd/kaiwa/internal/config"
	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/mockapi"
	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/tool"
	_ "github.com/harunnryd/kaiwa/internal/tool/builtin"
	"github.com/harunnryd/kaiwa/internal/wire"

	"charm.land/lipgloss/v2"
)

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// chatSession owns the conversation history and the client that answers it.
type chatSession struct {
	cfg      *config.Config
	endpoint string
	// swapped by /model while the signal handler may read it
	current atomic.Pointer[client.Client]
	tools   []tool.Definition
	history []contract.Turn
	out     io.Writer
	stop    func()
}

func newChatSession(ctx context.Context, cfg *config.Config, offline bool, out io.Writer) (*chatSession, error) {
	tools, err := enabledTools(cfg)
	if err != nil {
		return nil, err
	}

	s := &chatSession{
		cfg:      cfg,
		endpoint: cfg.API.Endpoint,
		tools:    tools,
		out:      out,
		stop:     func() {},
	}

	if offline {
		// the scripted endpoint speaks the v2 wire format only
		url, stop, err := mockapi.New(mockapi.Demo()).Start(ctx)
		if err != nil {
			return nil, err
		}
		s.endpoint = url
		s.stop = stop
		cfg.API.Flavor = "v2"
		slog.Info("Running offline", "endpoint", url)
	}

	if err := s.connect(nil); err != nil {
		s.stop()
		return nil, err
	}
	return s, nil
}

// connect (re)creates the client from the current config, keeping the
// given tool result cache.
func (s *chatSession) connect(cache tool.ResultCache) error {
	cc, err := clientConfig(s.cfg, s.endpoint)
	if err != nil {
		return err
	}
	cc.Cache = cache

	c, err := client.New(cc)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

func (s *chatSession) conn() *client.Client {
	return s.current.Load()
}

func clientConfig(cfg *config.Config, endpoint string) (client.Config, error) {
	idle, err := cfg.Exchange.IdleWindow()
	if err != nil {
		return client.Config{}, fmt.Errorf("exchange.idle_timeout: %w", err)
	}
	if idle == 0 {
		idle = -1
	}
	header, err := cfg.API.HeaderTimeout()
	if err != nil {
		return client.Config{}, fmt.Errorf("api.response_header_timeout: %w", err)
	}

	temperature := float32(cfg.API.Temperature)
	return client.Config{
		Endpoint: endpoint,
		APIKey:   cfg.API.Key,
		Flavor:   cfg.API.Flavor,
		Request: wire.Options{
			Model:       cfg.API.Model,
			Preamble:    strings.TrimSpace(cfg.Prompts.System),
			Temperature: &temperature,
		},
		ResponseHeaderTimeout: header,
		MaxToolRounds:         cfg.Exchange.MaxToolRounds,
		IdleTimeout:           idle,
		EventBuffer:           cfg.Exchange.EventBuffer,
		MaxParallel:           cfg.Exchange.MaxParallel,
	}, nil
}

// setModel switches the model for later questions.
func (s *chatSession) setModel(model string) error {
	previous := s.cfg.API.Model
	s.cfg.API.Model = model
	if err := s.connect(s.conn().Cache()); err != nil {
		s.cfg.API.Model = previous
		return err
	}
	return nil
}

func (s *chatSession) reset() {
	s.history = nil
}

func (s *chatSession) cancel() bool {
	c := s.conn()
	if c.State() == client.StateIdle {
		return false
	}
	c.Cancel()
	return true
}

// ask sends one user turn and prints the answer as it streams. The turn and
// the answer join the history only when the exchange completes.
func (s *chatSession) ask(ctx context.Context, question string) error {
	turns := append(s.history[:len(s.history):len(s.history)], contract.Turn{Role: contract.RoleUser, Content: question})

	st, err := s.conn().Start(ctx, turns, s.tools)
	if err != nil {
		return err
	}
	defer st.Close()

	var answer strings.Builder
	for st.Next() {
		ev := st.Current()
		if ev.Kind == client.EventText {
			answer.WriteString(ev.Text)
			fmt.Fprint(s.out, ev.Text)
		}
	}
	if answer.Len() > 0 {
		fmt.Fprintln(s.out)
	}

	if err := st.Err(); err != nil {
		fmt.Fprintln(s.out, errorStyle.Render("✗ "+err.Error()))
		if kaiwaErrors.IsRetryable(err) {
			fmt.Fprintln(s.out, noticeStyle.Render("(temporary failure, ask again to retry)"))
		}
		return err
	}
	if st.State() == client.StateCancelled {
		fmt.Fprintln(s.out, noticeStyle.Render("(cancelled)"))
		return nil
	}

	s.history = append(turns, contract.Turn{Role: contract.RoleAssistant, Content: answer.String()})
	return nil
}

func (s *chatSession) close() {
	s.conn().Cancel()
	s.stop()
}
