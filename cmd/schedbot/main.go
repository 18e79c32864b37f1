package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coopco/schedbot/internal/config"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "schedbot",
	Short: "schedbot - scheduled messages for Discord, Slack and Telegram",
	Long: `schedbot schedules one-shot messages for later today and posts them to
Discord, Slack or Telegram chats. Jobs survive restarts.

Examples:
  schedbot gateway                     # connect to chat platforms and serve commands
  schedbot gateway --config bot.yaml   # use an explicit config file
  schedbot jobs                        # list persisted jobs without connecting`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the schedbot version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "schedbot", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.schedbot/config.{json,yaml})")

	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// setupLogging installs the default slog handler described by cfg.
func setupLogging(w io.Writer, cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
