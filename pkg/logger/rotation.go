package logger

import (
	"io"
	"time"

	"github.com/cockroachdb/errors"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation strategies
const (
	RotationBySize = "size"
	RotationByTime = "time"
)

// ErrInvalidRotation is returned for unknown rotation strategies
var ErrInvalidRotation = errors.New("invalid log rotation")

// FileOutput describes a rotated log file
type FileOutput struct {
	Path     string
	Rotation string

	// size rotation
	MaxSizeMB  int
	MaxBackups int

	// time rotation
	RotationTime time.Duration
	MaxAge       time.Duration
}

// NewRotationWriter opens the log file described by f
func NewRotationWriter(f FileOutput) (io.Writer, error) {
	if f.Path == "" {
		return nil, errors.New("log file path is required")
	}
	switch f.Rotation {
	case "", RotationBySize:
		return newSizeRotationWriter(f), nil
	case RotationByTime:
		return newTimeRotationWriter(f)
	default:
		return nil, errors.Wrapf(ErrInvalidRotation, "%q", f.Rotation)
	}
}

func newSizeRotationWriter(f FileOutput) io.Writer {
	maxSize := f.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxAgeDays := int(f.MaxAge / (24 * time.Hour))
	return &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    maxSize,
		MaxBackups: f.MaxBackups,
		MaxAge:     maxAgeDays,
		LocalTime:  true,
	}
}

func newTimeRotationWriter(f FileOutput) (io.Writer, error) {
	rotation := f.RotationTime
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}
	maxAge := f.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	w, err := rotatelogs.New(
		f.Path+".%Y%m%d",
		rotatelogs.WithLinkName(f.Path),
		rotatelogs.WithRotationTime(rotation),
		rotatelogs.WithMaxAge(maxAge),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log file")
	}
	return w, nil
}
