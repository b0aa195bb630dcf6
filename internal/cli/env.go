package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bankchat/internal/assistant"
	"bankchat/internal/catalog"
	"bankchat/internal/config"
	"bankchat/internal/dispatch"
	"bankchat/internal/session"
	"bankchat/internal/utils"
)

// commonFlags are shared by every subcommand that talks to the assistant.
type commonFlags struct {
	envFile   *string
	transport *string
	endpoint  *string
	a2aURL    *string
	handshake *string
	catalog   *string
	logFile   *string
	verbose   *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		envFile:   fs.String("env", ".env", "dotenv file to load before reading BANKCHAT_* variables"),
		transport: fs.String("transport", "", "assistant transport: http|a2a"),
		endpoint:  fs.String("endpoint", "", "chat endpoint url for the http transport"),
		a2aURL:    fs.String("a2a-url", "", "json-rpc url for the a2a transport"),
		handshake: fs.String("handshake", "", "credential handshake: explicit|incremental"),
		catalog:   fs.String("catalog", "", "yaml file overriding quick commands"),
		logFile:   fs.String("log-file", "", "write logs to this file"),
		verbose:   fs.Bool("verbose", false, "debug logging"),
	}
}

// resolveConfig layers defaults, the environment and then flags.
func (f commonFlags) resolveConfig() (config.Config, error) {
	cfg, err := config.Load(*f.envFile)
	if err != nil {
		return cfg, err
	}
	if *f.transport != "" {
		cfg.Assistant.Transport = strings.ToLower(*f.transport)
	}
	if *f.endpoint != "" {
		cfg.Assistant.Endpoint = *f.endpoint
	}
	if *f.a2aURL != "" {
		cfg.Assistant.A2AURL = *f.a2aURL
	}
	if *f.handshake != "" {
		cfg.Session.Handshake = strings.ToLower(*f.handshake)
	}
	if *f.catalog != "" {
		cfg.Catalog.File = *f.catalog
	}
	if *f.logFile != "" {
		cfg.Logging.File = *f.logFile
	}
	if *f.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is one wired conversation session.
type app struct {
	cfg        config.Config
	logger     *utils.Logger
	store      *session.Store
	dispatcher *dispatch.Dispatcher
	catalog    *catalog.Catalog
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// newApp builds the session stack. Logs go to cfg.Logging.File when set,
// otherwise to fallback (nil discards).
func newApp(ctx context.Context, cfg config.Config, fallback io.Writer) (*app, error) {
	a := &app{cfg: cfg}
	logOut := fallback
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		logOut = f
	}
	a.logger = utils.NewLogger(cfg.Logging.Level, logOut)

	var client assistant.Client
	switch cfg.Assistant.Transport {
	case config.TransportA2A:
		c, err := assistant.NewA2AClient(ctx, cfg.Assistant.A2AURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		client = c
		a.logger.Infof("using a2a assistant at %s", cfg.Assistant.A2AURL)
	default:
		client = assistant.NewHTTPClient(cfg.Assistant.Endpoint, nil)
		a.logger.Infof("using http assistant at %s", cfg.Assistant.Endpoint)
	}

	table := catalog.Default()
	if cfg.Catalog.File != "" {
		t, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			a.Close()
			return nil, err
		}
		table = t
	}

	a.store = session.NewStore()
	a.dispatcher = dispatch.New(a.store, client, dispatch.Handshake(cfg.Session.Handshake), a.logger)
	a.catalog = catalog.New(a.store, a.dispatcher, table)
	a.logger.Debugf("session %s ready (handshake=%s)", utils.NewID("sess"), cfg.Session.Handshake)
	return a, nil
}
