package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hession/teachmate/internal/cli"
	"github.com/hession/teachmate/internal/client"
	"github.com/hession/teachmate/internal/config"
	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/logger"
	"github.com/hession/teachmate/internal/memory"
	"github.com/hession/teachmate/internal/remote"
	"github.com/hession/teachmate/internal/resolver"
	"github.com/hession/teachmate/internal/server"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "teachmate",
		Short: "TeachMate - a chat bot you can teach",
		Long: `TeachMate answers prompts from what it has been taught.

Lookup order:
  • Exact match on the normalized prompt
  • Closest taught prompt sharing enough words
  • The external completion API, whose answer is remembered`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe("")
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newMemoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	return cmd
}

func newChatCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				serverURL = localURL(cfg.Server.Addr)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()

			c := client.New(serverURL, 0)
			if err := c.Health(ctx); err != nil {
				return fmt.Errorf("server at %s is not reachable: %w", serverURL, err)
			}
			return cli.Run(ctx, c, serverURL)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (default derived from server.addr)")
	return cmd
}

func newMemoryCmd() *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect taught memory",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List taught prompts in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, err := memory.Open(cfg.Memory.Backend, cfg.Memory.Path, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Entries()
			if err != nil {
				return fmt.Errorf("failed to read memory: %w", err)
			}
			cli.PrintMemory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	memoryCmd.AddCommand(listCmd)
	return memoryCmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(out, "\nConfig file path: %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TeachMate v%s\n", version)
		},
	}
}

func runServe(addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		LogDir:     cfg.LogDir(),
		Level:      level,
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.Console,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetDefault()
	defer log.Close()

	logConfigInfo(log, cfg)

	store, err := memory.Open(cfg.Memory.Backend, cfg.Memory.Path, log)
	if err != nil {
		return fmt.Errorf("failed to initialize memory store: %w", err)
	}
	// final flush happens after the server has drained
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to save memory on shutdown: %v", err)
		}
	}()

	remoteClient := remote.New(
		cfg.Remote.BaseURL,
		cfg.RemoteTimeout(),
		remote.WithAPIKey(cfg.Remote.APIKey),
		remote.WithPath(cfg.Remote.Path),
	)

	res := resolver.New(
		store, remoteClient,
		resolver.WithMinOverlap(cfg.Resolver.MinOverlap),
		resolver.WithDedupe(cfg.Resolver.DedupeInflight),
		resolver.WithHistory(history.New(cfg.History.MaxEntries)),
		resolver.WithLogger(log),
	)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		StaticDir:       cfg.Server.StaticDir,
		ReadTimeout:     seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:    seconds(cfg.Server.WriteTimeoutSeconds),
		ShutdownTimeout: seconds(cfg.Server.ShutdownTimeoutSeconds),
	}, res, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// logConfigInfo writes the effective configuration at startup
func logConfigInfo(log *logger.Logger, cfg *config.Config) {
	log.Info("TeachMate v%s starting", version)
	log.Info("listen address: %s", cfg.Server.Addr)
	log.Info("memory: backend=%s path=%s", cfg.Memory.Backend, cfg.Memory.Path)
	log.Info("resolver: min_overlap=%d dedupe_inflight=%t", cfg.Resolver.MinOverlap, cfg.Resolver.DedupeInflight)
	log.Info("remote: %s%s (timeout %s)", cfg.Remote.BaseURL, cfg.Remote.Path, cfg.RemoteTimeout())
	if cfg.Remote.APIKey != "" {
		log.Info("remote api key: configured")
	} else {
		log.Debug("remote api key: not configured")
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// localURL turns a listen address into a URL a local client can dial
func localURL(addr string) string {
	addr = strings.TrimPrefix(addr, "0.0.0.0")
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
