//go:build !librados

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/go-rados/config"
	"github.com/wippyai/go-rados/native/sim"
)

const backendName = "sim"

// openBackend starts the in-process cluster, persisted to the configured
// store path when one is set. classes maps class names to WASM files.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger, classes map[string]string) (*backend, error) {
	opts := []sim.Option{
		sim.WithLogger(logger.Named("sim")),
		sim.WithLatency(cfg.Simulator.Latency),
		sim.WithSafeDelay(cfg.Simulator.SafeDelay),
	}
	if cfg.Simulator.FSID != "" {
		opts = append(opts, sim.WithFSID(cfg.Simulator.FSID))
	}
	if cfg.Simulator.StorePath != "" {
		st, err := sim.OpenBolt(logger.Named("store"), cfg.Simulator.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", cfg.Simulator.StorePath, err)
		}
		opts = append(opts, sim.WithStore(st))
	}

	s, err := sim.New(opts...)
	if err != nil {
		return nil, err
	}
	for class, path := range classes {
		bin, err := os.ReadFile(path)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("read class %s: %w", class, err)
		}
		methods, err := s.RegisterWASM(ctx, class, bin)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("load class %s: %w", class, err)
		}
		logger.Info("object class loaded",
			zap.String("class", class),
			zap.String("methods", strings.Join(methods, ",")))
	}

	return &backend{
		lib:        s,
		close:      s.Close,
		createPool: true,
	}, nil
}
