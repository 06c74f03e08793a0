package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/config"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/render"
)

// app is what every subcommand needs, built once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	client *agent.HTTPClient
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "healthguard",
		Short:         "Verify medical claims from the terminal",
		Long:          "healthguard talks to the HealthGuard agent and renders its verdict cards in the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String("agent-url", "", "agent base URL (default $AGENT_BASE_URL or http://localhost:8000)")
	flags.Duration("timeout", 0, "agent request timeout, 0 waits indefinitely")
	flags.StringP("log-level", "l", "warn", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.Bool("plain", false, "plain markdown styling for non-interactive output")
	flags.Int("width", 80, "wrap width of rendered cards")

	_ = a.v.BindPFlag("agent_base_url", flags.Lookup("agent-url"))
	_ = a.v.BindPFlag("agent_timeout", flags.Lookup("timeout"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = a.v.BindPFlag("plain", flags.Lookup("plain"))
	_ = a.v.BindPFlag("width", flags.Lookup("width"))

	root.AddCommand(newChatCmd(a), newAskCmd(a), newVerifyCmd(a))
	return root
}

func (a *app) init(stderr io.Writer) error {
	_ = godotenv.Load()

	// Changed flags win over the environment, which wins over defaults.
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	out := stderr
	if path := a.v.GetString("log_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	a.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(a.v.GetString("log_level"))}))
	slog.SetDefault(a.logger)

	a.client, err = agent.NewHTTPClient(agent.HTTPClientConfig{
		BaseURL: cfg.Agent.BaseURL,
		Timeout: cfg.Agent.Timeout,
	}, a.logger)
	return err
}

func (a *app) renderer() *render.TerminalRenderer {
	return render.NewTerminalRenderer(a.v.GetInt("width"), a.v.GetBool("plain"))
}

func (a *app) controller() *chat.Controller {
	id := identity.NewWithPrefix(identity.CLIUserPrefix, time.Now())
	return chat.NewController(id, agent.NewServiceWithQuerier(a.client), chat.WithLogger(a.logger))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
