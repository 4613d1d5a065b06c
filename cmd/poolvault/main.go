// Command poolvault inspects the durable ledger of a pooled-yield vault.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/poolvault-go/config"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""

var (
	app       = newApp()
	logCloser io.Closer
)

// Commonly used command line flags.
var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "vault data directory",
		Value: config.DefaultDataDir(),
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "configuration file (default: <datadir>/config)",
	}
)

func newApp() *cli.App {
	app := &cli.App{
		Name:    "poolvault",
		Usage:   "inspect a pooled-yield vault ledger",
		Version: version(),
		Flags:   []cli.Flag{dataDirFlag, configFlag},
		Commands: []*cli.Command{
			commandStatus,
			commandAssets,
			commandParticipants,
			commandRequests,
			commandInitConfig,
		},
		Before: setupLogging,
		After:  closeLogging,
	}
	return app
}

func version() string {
	if gitCommit == "" {
		return "dev"
	}
	if len(gitCommit) > 8 {
		return gitCommit[:8]
	}
	return gitCommit
}

// loadConfig resolves the operator configuration. An explicit --config must
// exist; the default <datadir>/config is optional. --datadir always wins
// over the file.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	path := ctx.String(configFlag.Name)
	explicit := path != ""
	if !explicit {
		path = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && !explicit:
		cfg = config.DefaultConfig()
	case err != nil:
		return config.Config{}, err
	}
	if ctx.IsSet(dataDirFlag.Name) || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func setupLogging(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		// Commands report configuration errors themselves.
		return nil
	}
	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	log.SetDefault(logger)
	logCloser = closer
	return nil
}

func closeLogging(*cli.Context) error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
