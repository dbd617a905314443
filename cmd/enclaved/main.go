// Command enclaved runs the enclave agent core: an HTTP server exposing the
// gateway, a one-shot ask command for smoke tests, and management of the
// encrypted API keystore.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adapsys/enclave"
	"github.com/adapsys/enclave/completion"
	"github.com/adapsys/enclave/completion/anthropic"
	"github.com/adapsys/enclave/completion/ollama"
	"github.com/adapsys/enclave/completion/openai"
	"github.com/adapsys/enclave/config"
	"github.com/adapsys/enclave/keystore"
	"github.com/adapsys/enclave/logging"
	"github.com/adapsys/enclave/server"
)

var (
	configPath string
	passphrase string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "enclaved",
		Short:         "Enclave agent core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd(), askCmd(), keysCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			core.Start(ctx)

			srv := &http.Server{
				Addr: cfg.Server.Addr,
				Handler: server.New(core, func(o *server.Options) {
					o.Audit = core.Audit()
					o.Registry = core.Registry()
					o.Queue = core.Queue()
					o.Heartbeat = core.Heartbeat
					o.Logger = logger
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("server listening", "addr", cfg.Server.Addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown failed", "error", err)
			}
			return core.Shutdown(shutdownCtx)
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one request through the gateway and print the response",
		Args:  cobra.MinimumNArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = core.Shutdown(ctx)
			}()

			prompt := "System test: confirm LLM link is active."
			if len(args) > 0 {
				prompt = args[0]
			}

			response, err := core.ProcessRequest(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), response)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the encrypted API keystore",
	}
	keys.PersistentFlags().StringVar(&passphrase, "pass", "", "keystore passphrase (defaults to "+keystore.PassphraseEnvVar+")")

	keys.AddCommand(
		&cobra.Command{
			Use:   "set <name> <value>",
			Short: "Store a credential",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := openKeystore()
				if err != nil {
					return err
				}
				if err := ks.Set(args[0], args[1], passphrase); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print a credential",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := openKeystore()
				if err != nil {
					return err
				}
				value, err := ks.Get(args[0], passphrase)
				if err != nil {
					return err
				}
				if value == "" {
					return fmt.Errorf("no such key: %s", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored credential names",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ks, err := openKeystore()
				if err != nil {
					return err
				}
				items, err := ks.Items(passphrase)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(items))
				for name := range items {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
	)
	return keys
}

// newLogger builds the process logger from the logging section: level and
// format feed whichever backend is selected.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Backend == "zap" {
		return logging.NewZapLogger(level, cfg.Logging.Format)
	}
	return logging.NewSlogLogger(level, cfg.Logging.Format, false), nil
}

func openKeystore() (*keystore.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return keystore.New(cfg.Paths.Keystore), nil
}

func buildCore(cfg *config.Config, logger logging.Logger) (*enclave.Core, error) {
	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return enclave.New(completer, func(o *enclave.Options) {
		o.Logger = logger
		o.LogDir = cfg.Paths.LogDir
		o.StatePath = cfg.Paths.StateFile
		o.QueueWorkers = cfg.Queue.Workers
		o.HeartbeatInterval = cfg.Jobs.HeartbeatInterval
	})
}

func buildCompleter(cfg *config.Config) (completion.Completer, error) {
	switch cfg.Model.Provider {
	case "ollama":
		return ollama.New(func(o *ollama.Options) {
			o.URL = cfg.Model.OllamaURL
			o.Model = cfg.Model.ID
			o.Instruction = cfg.Model.Instruction
			o.MaxTokens = cfg.Model.MaxTokens
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model.ID != "" {
				o.Model = cfg.Model.ID
			}
			o.Instruction = cfg.Model.Instruction
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = int64(cfg.Model.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model.ID != "" {
				o.Model = anthropic.ModelID(cfg.Model.ID)
			}
			o.Instruction = cfg.Model.Instruction
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = int64(cfg.Model.MaxTokens)
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}
