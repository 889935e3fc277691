package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/plambrechtsen/pethublocal/internal/config"
	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/plambrechtsen/pethublocal/internal/registry"
	"github.com/plambrechtsen/pethublocal/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags
var (
	configPath   string
	dbFlag       string
	keyFlag      string
	logLevelFlag string
	verboseFlag  bool
	jsonFlag     bool
)

// cfg is the loaded configuration with flag overrides applied.
var cfg *config.Config

// loadConfig reads the config file and applies the global flags over it.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			return err
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if dbFlag != "" {
		loaded.Database = dbFlag
	}
	if keyFlag != "" {
		loaded.KeyFile = keyFlag
	}
	if env := os.Getenv(logging.LogLevelEnvVar); env != "" {
		loaded.LogLevel = env
	}
	if logLevelFlag != "" {
		loaded.LogLevel = logLevelFlag
	}
	if cmd.Flags().Changed("verbose") {
		loaded.Verbose = verboseFlag
	}
	cfg = loaded
	configPath = path

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	logging.Debug("Configuration loaded",
		zap.String("path", path),
		zap.String("database", cfg.DatabasePath()),
		zap.String("topic_prefix", cfg.Topic),
	)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newPrinter() *ui.Printer {
	if jsonFlag {
		return ui.NewJSONPrinter(os.Stdout)
	}
	return ui.NewPrinter(os.Stdout)
}

// openStore opens the registry database named by the configuration.
func openStore(ctx context.Context) (*registry.Store, func(), error) {
	path := cfg.DatabasePath()
	db, err := registry.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("Registry opened", zap.String("path", path))
	return registry.NewStore(db), func() { _ = db.Close() }, nil
}

// newCodec builds a codec backed by the registry. The XOR key is only
// loaded when radio frames will be decoded.
func newCodec(ctx context.Context, needKey bool) (*protocol.Codec, *registry.Store, func(), error) {
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	codecCfg := protocol.CodecConfig{
		Verbose:     cfg.Verbose,
		TopicPrefix: cfg.Topic,
	}
	if needKey {
		key, err := protocol.LoadKey(cfg.KeyPath())
		if err != nil {
			closeStore()
			return nil, nil, nil, fmt.Errorf("failed to load XOR key: %w", err)
		}
		codecCfg.Key = key
	}
	if path := cfg.OperationsPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			closeStore()
			return nil, nil, nil, fmt.Errorf("failed to read operations file: %w", err)
		}
		table, err := protocol.LoadOperations(data)
		if err != nil {
			closeStore()
			return nil, nil, nil, err
		}
		codecCfg.Operations = table
	}

	return protocol.NewCodec(codecCfg, store, store), store, closeStore, nil
}
