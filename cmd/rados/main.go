package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/go-rados"
	"github.com/wippyai/go-rados/config"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/metrics"
	"github.com/wippyai/go-rados/native"
)

// backend is the native library the command talks to.
type backend struct {
	lib   native.Library
	close func() error
	// createPool creates the configured pool when it is missing.
	createPool bool
}

// classFlags collects -class name=path.wasm pairs.
type classFlags map[string]string

func (c classFlags) String() string {
	var parts []string
	for k, v := range c {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (c classFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	c[name] = path
	return nil
}

func main() {
	classes := classFlags{}
	var (
		configFile  = flag.String("config", "", "Path to YAML configuration file")
		pool        = flag.String("pool", "", "Pool to operate on (overrides config)")
		namespace   = flag.String("ns", "", "Object namespace")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
		interactive = flag.Bool("i", false, "Interactive shell")
	)
	flag.Var(classes, "class", "Load a WASM object class into the simulated cluster (name=path.wasm, repeatable)")
	flag.Usage = usage
	flag.Parse()

	if !*interactive && flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *pool != "" {
		cfg.Cluster.Pool = *pool
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, classes, *namespace, *interactive, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: rados [flags] <command> [args...]")
	fmt.Fprintln(os.Stderr, "       rados [flags] -i  (interactive shell)")
	fmt.Fprintf(os.Stderr, "\nBackend: %s\n\nCommands:\n", backendName)
	writeHelp(os.Stderr)
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, classes map[string]string, ns string, interactive bool, args []string) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []rados.Option{rados.WithLogger(logger)}
	if cfg.Buffer.InitialSize >= 0 {
		opts = append(opts, rados.WithInitialBufferSize(cfg.Buffer.InitialSize))
	}
	if cfg.Buffer.MaxSize > 0 {
		opts = append(opts, rados.WithMaxBufferSize(cfg.Buffer.MaxSize))
	}

	if cfg.Metrics.Enabled {
		col, err := metrics.NewCollector(metrics.WithLogger(logger), metrics.WithRuntimeMetrics())
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		go func() {
			if err := col.ServeListener(ctx, ln); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		opts = append(opts, rados.WithObserver(col))
	}

	be, err := openBackend(ctx, cfg, logger, classes)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Warn("backend close", zap.Error(err))
		}
	}()

	env := rados.New(be.lib, opts...)
	defer env.Close()

	sess, err := openSession(env, cfg, be.createPool)
	if err != nil {
		return err
	}
	if ns != "" {
		if err := sess.io.SetNamespace(ns); err != nil {
			return err
		}
	}

	if interactive {
		return runInteractive(ctx, sess)
	}
	return sess.exec(ctx, os.Stdout, args)
}

// openSession connects and opens the configured pool.
func openSession(env *rados.Rados, cfg *config.Config, createPool bool) (*session, error) {
	conn, err := env.NewConn(
		rados.WithClusterName(cfg.Cluster.Name),
		rados.WithUser(cfg.Cluster.User),
	)
	if err != nil {
		return nil, err
	}
	if cfg.Cluster.ConfFile != "" {
		if err := conn.ReadConfigFile(cfg.Cluster.ConfFile); err != nil {
			return nil, err
		}
	}
	for k, v := range cfg.Cluster.Options {
		if err := conn.SetConfig(k, v); err != nil {
			return nil, err
		}
	}
	if err := conn.Connect(); err != nil {
		return nil, err
	}

	if createPool {
		if _, err := conn.LookupPool(cfg.Cluster.Pool); errors.IsErrno(err, syscall.ENOENT) {
			if err := conn.CreatePool(cfg.Cluster.Pool); err != nil {
				return nil, err
			}
		}
	}
	return newSession(env, conn, cfg.Cluster.Pool)
}
