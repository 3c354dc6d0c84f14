package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志选项
type Options struct {
	Level      string // debug | info | warn | error
	Debug      bool   // 等价于 Level=debug
	File       string // 为空时只输出到 stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger 创建一个新的日志记录器
func NewLogger(debug bool) *zap.Logger {
	logger, err := New(Options{Debug: debug})
	if err != nil {
		panic("初始化日志系统失败: " + err.Error())
	}
	return logger
}

// New 按选项创建日志记录器，File 非空时同时写入滚动日志文件
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 5),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func parseLevel(opts Options) (zap.AtomicLevel, error) {
	if opts.Debug {
		return zap.NewAtomicLevelAt(zap.DebugLevel), nil
	}
	if strings.TrimSpace(opts.Level) == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(opts.Level))
	if err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	return level, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
