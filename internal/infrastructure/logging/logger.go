package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. Its level can be changed while running.
type Logger struct {
	*zap.Logger
	level     zap.AtomicLevel
	closeSink func()
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig returns production logger configuration.
func DefaultConfig() Config {
	return Config{Level: "info", OutputPaths: []string{"stdout"}}
}

// New builds a logger writing to cfg.OutputPaths
func New(cfg Config) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	sink, closeSink, err := zap.Open(paths...)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}

	encoder := zapcore.NewJSONEncoder(productionEncoder())
	opts := []zap.Option{
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.AddStacktrace(zapcore.DPanicLevel),
	}
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(developmentEncoder())
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	return &Logger{
		Logger:    zap.New(zapcore.NewCore(encoder, sink, level), opts...),
		level:     level,
		closeSink: closeSink,
	}, nil
}

// NewDefault creates a logger with default configuration.
func NewDefault() *Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
	}
	return logger
}

// Named returns a child logger for one component
func (l *Logger) Named(name string) *zap.Logger {
	return l.Logger.Named(name)
}

// Level is the live level. It serves GET and PUT {"level":"debug"} over HTTP.
func (l *Logger) Level() zap.AtomicLevel {
	if l.level == (zap.AtomicLevel{}) {
		l.level = zap.NewAtomicLevel()
	}
	return l.level
}

// Close flushes buffered entries and releases file outputs. Sync errors on
// terminals are ignored.
func (l *Logger) Close() {
	_ = l.Sync()
	if l.closeSink != nil {
		l.closeSink()
		l.closeSink = nil
	}
}

func productionEncoder() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func developmentEncoder() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}
