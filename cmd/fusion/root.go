package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fusion"
	"github.com/hupe1980/fusion/internal/config"
)

var (
	globalConfig *config.Config
	globalLogger *fusion.Logger
)

// Global flags
var (
	configPath string
	logLevel   string
	logFormat  string
	threads    int
)

var rootCmd = &cobra.Command{
	Use:   "fusion",
	Short: "Word embedding utilities",
	Long: `Convert, query, quantize and evaluate word embeddings.

Embeddings are read from local paths, s3://bucket/key or minio://bucket/key.
The format is inferred from the file name (.fifu, .bin, .txt, .vec and an
optional .zst or .lz4 suffix) unless --from or --to is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if flags.Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if flags.Changed("threads") && threads > 0 {
			cfg.Threads = threads
		}
		globalConfig = cfg

		level, err := cfg.LogLevel()
		if err != nil {
			return err
		}
		switch strings.ToLower(cfg.Log.Format) {
		case "", "text":
			globalLogger = fusion.NewTextLogger(level)
		case "json":
			globalLogger = fusion.NewJSONLogger(level)
		default:
			return fmt.Errorf("unknown log format %q", cfg.Log.Format)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/fusion/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.IntVar(&threads, "threads", 0, "Worker threads (default: all CPUs)")
}

// modelOptions returns the options shared by every command.
func modelOptions(extra ...fusion.Option) []fusion.Option {
	opts := []fusion.Option{
		fusion.WithLogger(globalLogger),
		fusion.WithWorkers(globalConfig.Threads),
	}
	return append(opts, extra...)
}
