package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/config"
	logruslog "github.com/unkn0wn-root/snapcache/log/logrus"
	sloglog "github.com/unkn0wn-root/snapcache/log/slog"
	zaplog "github.com/unkn0wn-root/snapcache/log/zap"
)

// newLogger builds the configured backend. The returned *slog.Logger is
// non-nil only for the slog backend, where cache hooks log through it too.
func newLogger(cfg config.LogConfig) (snapcache.Logger, *slog.Logger, func(), error) {
	switch cfg.Backend {
	case "zap":
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewProductionConfig()
		if cfg.Format == "text" {
			zc = zap.NewDevelopmentConfig()
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
		zc.OutputPaths = []string{"stderr"}
		l, err := zc.Build()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return zaplog.New(l.Named("snapcache")), nil, func() { _ = l.Sync() }, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		if cfg.Format == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.New(l), nil, func() {}, nil

	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		opts := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.Format == "json" {
			h = slog.NewJSONHandler(os.Stderr, opts)
		}
		l := slog.New(h)
		return sloglog.New(l), l, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
}
