// Package main is the entry point for the dcsearch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/donorschoose-client/internal/config"
	"github.com/Sternrassler/donorschoose-client/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// app carries state shared by subcommands once the root command has
// resolved the configuration.
type app struct {
	v   *viper.Viper
	cfg config.Config
}

// newRootCmd builds the dcsearch command tree.
func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "dcsearch",
		Short: "Search DonorsChoose project listings",
		Long: `dcsearch queries the DonorsChoose project listing API. A search walks
every page of results, 50 proposals at a time with a fixed pause between
requests, and prints the merged set.

Settings come from flags, DCSEARCH_* environment variables, and an optional
dcsearch.yaml file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./dcsearch.yaml or ~/.config/dcsearch/dcsearch.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error, disabled")
	flags.Bool("log-pretty", false, "human-readable log output")
	flags.String("api-key", "", "listing API key (default DONORSCHOOSE)")
	flags.String("base-url", "", "listing endpoint override")
	flags.Duration("delay", 0, "pause between page requests (default 1s)")
	flags.Duration("timeout", 0, "HTTP request timeout (default 30s)")
	flags.String("user-agent", "", "User-Agent header")
	flags.Int("max-pages", 0, "abort a search after this many requests (0 = unlimited)")
	flags.String("redis-url", "", "share request pacing across processes through this Redis")

	bindFlags(a.v, flags, map[string]string{
		config.KeyLogLevel:  "log-level",
		config.KeyLogPretty: "log-pretty",
		config.KeyAPIKey:    "api-key",
		config.KeyBaseURL:   "base-url",
		config.KeyDelay:     "delay",
		config.KeyTimeout:   "timeout",
		config.KeyUserAgent: "user-agent",
		config.KeyMaxPages:  "max-pages",
		config.KeyRedisURL:  "redis-url",
	})

	rootCmd.AddCommand(
		newSearchCmd(a),
		newURLCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// setup reads the config file, resolves settings and sets up logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	used, err := config.ReadFile(a.v, cfgFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	if used != "" {
		log.Debug().Str("file", used).Msg("Using config file")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
