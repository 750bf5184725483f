// Package logger builds the zap loggers used by teams-notify.
package logger

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats
const (
	ConsoleFormat = "console"
	JSONFormat    = "json"
)

// ErrInvalidFormat is returned for unknown output formats
var ErrInvalidFormat = errors.New("invalid log format")

// Option configures New
type Option func(*options)

type options struct {
	file *FileOutput
}

// WithFile sends log output to a rotated file instead of stderr
func WithFile(file FileOutput) Option {
	return func(o *options) { o.file = &file }
}

// New builds a logger writing to stderr at the given level and format
func New(level, format string, opts ...Option) (*zap.Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch format {
	case "", ConsoleFormat:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if o.file != nil {
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case JSONFormat:
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, errors.Wrapf(ErrInvalidFormat, "%q", format)
	}

	sink := zapcore.Lock(os.Stderr)
	if o.file != nil {
		w, err := NewRotationWriter(*o.file)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(w)
	}

	core := zapcore.NewCore(encoder, sink, lvl)
	return zap.New(core, zap.AddCaller()).Named("teams-notify"), nil
}
