package main

import (
	"fmt"

	"github.com/harunnryd/kaiwa/internal/config"
	"github.com/harunnryd/kaiwa/internal/tool"
	"github.com/harunnryd/kaiwa/internal/tool/formatter"

	"github.com/spf13/cobra"
)

var toolsOutput string

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List the tools offered to the model",
	Long:  `List the enabled built-in tools, or describe one of them.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatter.ParseOutputFormat(toolsOutput)
		if err != nil {
			return err
		}
		f, err := formatter.NewFormatterFactory().Create(format)
		if err != nil {
			return err
		}

		defs, err := enabledTools(cfg)
		if err != nil {
			return fmt.Errorf("failed to load tools: %w", err)
		}

		var out string
		if len(args) == 0 {
			out, err = f.FormatTools(defs)
		} else {
			def := findTool(defs, args[0])
			if def == nil {
				return fmt.Errorf("tool %q is not enabled (available: %v)", args[0], tool.BuiltinNames())
			}
			out, err = f.FormatTool(def)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func enabledTools(cfg *config.Config) ([]tool.Definition, error) {
	weatherTimeout, err := cfg.Tools.Weather.RequestTimeout()
	if err != nil {
		return nil, fmt.Errorf("tools.weather.timeout: %w", err)
	}
	return tool.InstantiateBuiltins(tool.BuiltinOptions{
		WeatherBaseURL: cfg.Tools.Weather.BaseURL,
		WeatherTimeout: weatherTimeout,
	}, cfg.Tools.Enabled...)
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsOutput, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(toolsCmd)
}
