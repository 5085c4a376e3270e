//go:build librados

package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wippyai/go-rados/config"
	"github.com/wippyai/go-rados/native/librados"
)

const backendName = "librados"

func openBackend(_ context.Context, _ *config.Config, logger *zap.Logger, classes map[string]string) (*backend, error) {
	if len(classes) > 0 {
		return nil, errors.New("-class is only supported by the simulated cluster")
	}
	return &backend{
		lib:   librados.New(librados.WithLogger(logger.Named("librados"))),
		close: func() error { return nil },
	}, nil
}
