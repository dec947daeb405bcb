package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bryanwahyu/clickrank/src/config"
)

// New builds the process logger. Output always goes to stdout; when a file is
// configured it is also written there with size-based rotation.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return newWithStdout(cfg, os.Stdout)
}

func newWithStdout(cfg config.LogConfig, stdout io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		// Files always get JSON so they stay machine readable.
		fileEncoder, _ := newEncoder("json")
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(encCfg), nil
	case "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
