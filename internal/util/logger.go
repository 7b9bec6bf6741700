package util

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

type logOptions struct {
	dailyFile func(day time.Time) string
	errorHook func(entry zapcore.Entry)
}

// Option customizes the global logger built by Init
type Option func(*logOptions)

// WithDailyLogFile tees every entry into pathFor(today), switching files when
// the local date changes
func WithDailyLogFile(pathFor func(day time.Time) string) Option {
	return func(o *logOptions) {
		o.dailyFile = pathFor
	}
}

// WithErrorHook calls fn for every entry at ERROR level or above
func WithErrorHook(fn func(entry zapcore.Entry)) Option {
	return func(o *logOptions) {
		o.errorHook = fn
	}
}

// Init initializes the global logger based on environment
func Init(environment, level, format string, opts ...Option) *zap.Logger {
	once.Do(func() {
		var options logOptions
		for _, opt := range opts {
			opt(&options)
		}

		var config zap.Config

		if environment == "production" {
			config = zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(parseLogLevel(level))
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

			config.DisableStacktrace = true
			config.Sampling = &zap.SamplingConfig{
				Initial:    100,
				Thereafter: 100,
			}
		} else {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(parseLogLevel(level))
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		if format == "json" {
			config.Encoding = "json"
		} else {
			config.Encoding = "console"
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		buildOpts := []zap.Option{
			zap.AddCaller(),
			zap.AddCallerSkip(1),
		}
		if options.dailyFile != nil {
			fileCore := zapcore.NewCore(
				fileEncoder(config),
				zapcore.AddSync(NewDailyFileWriter(options.dailyFile)),
				config.Level,
			)
			buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return zapcore.NewTee(core, fileCore)
			}))
		}
		if options.errorHook != nil {
			hook := options.errorHook
			buildOpts = append(buildOpts, zap.Hooks(func(entry zapcore.Entry) error {
				if entry.Level >= zapcore.ErrorLevel {
					hook(entry)
				}
				return nil
			}))
		}

		var err error
		globalLogger, err = config.Build(buildOpts...)
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}

		zap.ReplaceGlobals(globalLogger)
	})

	return globalLogger
}

// fileEncoder mirrors the stdout encoder without color codes
func fileEncoder(config zap.Config) zapcore.Encoder {
	encCfg := config.EncoderConfig
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if config.Encoding == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if globalLogger == nil {
		return Init("production", "info", "json")
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// Convenience methods
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

// Common field helpers
func String(key, value string) zap.Field {
	return zap.String(key, value)
}

func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// ErrorField creates an error field (renamed to avoid conflict)
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}
