package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coldchat/internal/channel"
	"coldchat/internal/chatlog"
	"coldchat/internal/config"
	"coldchat/internal/domain"
	"coldchat/internal/metrics"
	"coldchat/internal/oracle"
	"coldchat/internal/persona"
	"coldchat/internal/session"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "coldchat",
		Short: "ColdChat: a persona chat partner that decides whether you are worth replying to",
		Long: "ColdChat simulates a hard-to-impress chat persona. Replies, their timing and their\n" +
			"tone all depend on an affinity score the conversation slowly moves.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.coldchat/config.json)")

	root.AddCommand(chatCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	def := config.DefaultConfigPath()
	if _, err := os.Stat(def); err == nil {
		return def
	}
	return "" // defaults + env overrides
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

func chatCmd() *cobra.Command {
	var (
		offline     bool
		archive     bool
		debug       bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the persona in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setLogLevel(cfg.General.LogLevel)

			p, err := persona.Load(cfg.General.PersonaFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orc, err := buildOracle(ctx, cfg, p, offline)
			if err != nil {
				return err
			}

			var sink domain.Archive
			if archive || cfg.Archive.Enabled {
				a, err := chatlog.NewSQLiteArchive(cfg.Archive.DBPath, logger)
				if err != nil {
					return err
				}
				defer a.Close()
				sink = a
				logger.Info("transcript archive enabled", "path", cfg.Archive.DBPath)
			}

			sess := session.New(session.Config{
				Persona: p,
				Oracle:  orc,
				Archive: sink,
				Logger:  logger,
			})
			defer sess.Close()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.HandleFunc("/metrics", metrics.Collector.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					logger.Info("metrics endpoint listening", "addr", metricsAddr)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics endpoint failed", "error", err)
					}
				}()
				defer srv.Close()
			}

			if cfg.Channels.Telegram.Enabled {
				tg := channel.NewTelegram(channel.TelegramConfig{
					Token:     cfg.Channels.Telegram.Token,
					AllowFrom: cfg.Channels.Telegram.AllowFrom,
					Session:   sess,
					Logger:    logger,
				})
				go func() {
					if err := tg.Start(ctx); err != nil {
						logger.Error("telegram channel failed", "error", err)
					}
				}()
			}

			cli := channel.NewCLI(channel.CLIConfig{
				Session:   sess,
				Logger:    logger,
				ShowDebug: debug || cfg.Channels.CLI.ShowDebug,
			})
			return cli.Start(ctx)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "use the scripted oracle instead of Gemini")
	cmd.Flags().BoolVar(&archive, "archive", false, "record the transcript to the SQLite archive")
	cmd.Flags().BoolVar(&debug, "debug", false, "show interest levels and oracle thoughts")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func buildOracle(ctx context.Context, cfg *config.Config, p *persona.Persona, offline bool) (domain.Oracle, error) {
	if offline || cfg.Oracle.Provider == "scripted" {
		logger.Info("using scripted oracle")
		return oracle.NewScripted(), nil
	}
	return oracle.NewGemini(ctx, oracle.GeminiConfig{
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
		Persona: p,
		Logger:  logger,
	})
}

func setLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("coldchat v%s\n", version)
		},
	}
}
