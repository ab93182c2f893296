package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/kaiwa/internal/config"
	"github.com/harunnryd/kaiwa/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	offline bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kaiwa",
	Short: "Kaiwa streaming chat client",
	Long:  `Kaiwa is a streaming chat client that lets the model call local tools and answers from their results.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kaiwa/config.yaml)")
	flags.String("log-level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	flags.String("endpoint", config.DefaultAPIEndpoint, "chat endpoint URL")
	flags.String("model", config.DefaultAPIModel, "model name")
	flags.String("flavor", config.DefaultAPIFlavor, "wire flavor (v2, v1)")
	flags.Float64("temperature", config.DefaultAPITemperature, "sampling temperature")
	flags.Int("max-tool-rounds", config.DefaultExchangeMaxToolRounds, "continuation requests allowed per question")
	flags.String("idle-timeout", config.DefaultExchangeIdleTimeout, "fail a stream silent for this long (0 disables)")
	flags.String("system-prompt", "", "system prompt sent with every request")
	flags.StringSlice("tools", config.DefaultEnabledTools, "built-in tools offered to the model")
	flags.BoolVar(&offline, "offline", false, "answer from a local scripted endpoint instead of the API")
}
