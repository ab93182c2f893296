package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long:  `Ask a single question, stream the answer and exit. The exit status is non-zero when the exchange fails.`,
	Args:  cobra.MinimumNArgs(1),
	// the failure is already printed after the partial answer
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		session, err := newChatSession(ctx, cfg, offline, cmd.OutOrStdout())
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return fmt.Errorf("failed to start session: %w", err)
		}
		defer session.close()

		signals := NewSignalHandler(ctx, session.cancel)
		signals.Start()
		defer signals.Stop()

		return session.ask(signals.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
