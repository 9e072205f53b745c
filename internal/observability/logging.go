package observability

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/sumandas0/notionmbse/pkg/utils"
)

type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
	LogLevelPanic LogLevel = "panic"
)

type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

type LoggingConfig struct {
	Level      LogLevel        `yaml:"level" mapstructure:"level"`
	Format     LogFormat       `yaml:"format" mapstructure:"format"`
	Output     string          `yaml:"output" mapstructure:"output"`
	TimeFormat string          `yaml:"time_format" mapstructure:"time_format"`
	Sampling   *SamplingConfig `yaml:"sampling" mapstructure:"sampling"`
}

type SamplingConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Tick       time.Duration `yaml:"tick" mapstructure:"tick"`
	First      int           `yaml:"first" mapstructure:"first"`
	Thereafter int           `yaml:"thereafter" mapstructure:"thereafter"`
}

type Logger struct {
	logger zerolog.Logger
	config LoggingConfig
}

func NewLogger(config LoggingConfig) (*Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	}

	var logger zerolog.Logger
	switch config.Format {
	case LogFormatConsole:
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: getTimeFormat(config.TimeFormat),
		}
		logger = zerolog.New(output)
	case LogFormatJSON:
		logger = zerolog.New(output)
	default:
		logger = zerolog.New(output)
	}

	logger = logger.With().
		Timestamp().
		Caller().
		Str("service", ServiceName).
		Logger()

	if config.Sampling != nil && config.Sampling.Enabled {
		logger = logger.Sample(&zerolog.BasicSampler{
			N: uint32(config.Sampling.Thereafter),
		})
	}

	return &Logger{
		logger: logger,
		config: config,
	}, nil
}

// WithTrace adds the trace and span ids of ctx to logger when a span is
// recording.
func WithTrace(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	traceInfo := ExtractTraceInfo(ctx)
	if traceInfo == nil {
		return logger
	}
	lc := logger.With()
	for key, value := range traceInfo {
		lc = lc.Interface(key, value)
	}
	return lc.Logger()
}

func (l *Logger) GetZerologLogger() zerolog.Logger {
	return l.logger
}

func parseLogLevel(level LogLevel) (zerolog.Level, error) {
	switch level {
	case LogLevelTrace:
		return zerolog.TraceLevel, nil
	case LogLevelDebug:
		return zerolog.DebugLevel, nil
	case LogLevelInfo:
		return zerolog.InfoLevel, nil
	case LogLevelWarn:
		return zerolog.WarnLevel, nil
	case LogLevelError:
		return zerolog.ErrorLevel, nil
	case LogLevelFatal:
		return zerolog.FatalLevel, nil
	case LogLevelPanic:
		return zerolog.PanicLevel, nil
	default:
		return zerolog.InfoLevel, nil
	}
}

func getTimeFormat(format string) string {
	if format == "" {
		return time.RFC3339
	}
	return format
}

// LogAppError logs err with its code and details when it is an AppError.
func LogAppError(ctx context.Context, logger zerolog.Logger, err error, msg string) {
	logger = WithTrace(ctx, logger)
	logEvent := logger.Error().Err(err)

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		logEvent = logEvent.Str("error_code", appErr.Code)
		if len(appErr.Details) > 0 {
			logEvent = logEvent.Interface("error_details", appErr.Details)
		}
	}

	logEvent.Msg(msg)
}

func SetGlobalLogger(logger *Logger) {
	log.Logger = logger.logger
}
