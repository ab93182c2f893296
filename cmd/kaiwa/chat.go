package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/harunnryd/kaiwa/internal/tool"
	"github.com/harunnryd/kaiwa/internal/tool/formatter"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long:  `Start an interactive session. Ctrl-C stops the answer being streamed; Ctrl-C at the prompt exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func runChat(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	session, err := newChatSession(ctx, cfg, offline, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.close()

	signals := NewSignalHandler(ctx, session.cancel)
	signals.Start()
	defer signals.Stop()

	return newREPL(session, cmd.InOrStdin(), cmd.OutOrStdout()).run(signals.Context())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

type repl struct {
	session *chatSession
	reader  *bufio.Reader
	out     io.Writer
}

func newREPL(session *chatSession, in io.Reader, out io.Writer) *repl {
	return &repl{
		session: session,
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintf(r.out, "Kaiwa (%s, %d tools)\n", r.session.cfg.API.Model, len(r.session.tools))
	fmt.Fprintln(r.out, "Type '/help' for commands, '/exit' to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			text, err := r.reader.ReadString('\n')
			if text != "" {
				select {
				case lines <- text:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			if quit := r.handle(ctx, strings.TrimSpace(text)); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "/") {
		return r.command(text)
	}

	if err := r.session.ask(ctx, text); err != nil {
		slog.Debug("Question failed", "error", err)
	}
	return false
}

func (r *repl) command(input string) bool {
	parts, err := shlex.Split(input)
	if err != nil {
		parts = strings.Fields(input)
	}
	if len(parts) == 0 {
		return false
	}
	cmd := parts[0]
	args := parts[1:]

	slog.Debug("Executing slash command", "cmd", cmd)

	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText())
	case "/clear", "/reset":
		r.session.reset()
		fmt.Fprintln(r.out, "History cleared.")
	case "/tools":
		r.showTools(args)
	case "/model":
		r.model(args)
	case "/history":
		r.showHistory()
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (try /help)\n", cmd)
	}
	return false
}

func (r *repl) showTools(args []string) {
	f := formatter.NewTableFormatter()

	var (
		out string
		err error
	)
	if len(args) == 0 {
		out, err = f.FormatTools(r.session.tools)
	} else {
		out, err = f.FormatTool(findTool(r.session.tools, args[0]))
	}
	if err != nil {
		fmt.Fprintf(r.out, "Failed to format tools: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, out)
}

func (r *repl) model(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Model: %s\n", r.session.cfg.API.Model)
		return
	}
	if err := r.session.setModel(args[0]); err != nil {
		fmt.Fprintf(r.out, "Failed to switch model: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Model switched to %s\n", args[0])
}

func (r *repl) showHistory() {
	if len(r.session.history) == 0 {
		fmt.Fprintln(r.out, "No history yet.")
		return
	}
	for _, turn := range r.session.history {
		fmt.Fprintf(r.out, "%s: %s\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(r.out, "(%d turns)\n", len(r.session.history))
}

func findTool(defs []tool.Definition, name string) *tool.Definition {
	name = tool.NormalizeToolName(name)
	for i := range defs {
		if tool.NormalizeToolName(defs[i].Name) == name {
			return &defs[i]
		}
	}
	return nil
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  /help            show this help",
		"  /tools [name]    list the tools offered to the model",
		"  /model [name]    show or switch the model",
		"  /history         show the conversation so far",
		"  /clear, /reset   forget the conversation",
		"  /exit, /quit     leave the session",
	}, "\n")
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
