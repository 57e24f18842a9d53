package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init configures the process-wide structured logger. Safe to call more
// than once; later calls replace the logger.
func Init() {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "event",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	if os.Getenv("LOG_DEBUG") == "true" {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)
	log = zap.New(core)
}

func fieldsOf(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		out = append(out, zap.Any(key, value))
	}
	return out
}

func Info(event string, fields map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Info(event, fieldsOf(fields)...)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Info(event, append(fieldsOf(fields), zap.String("user_id", userID))...)
}

func Warn(event string, fields map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Warn(event, fieldsOf(fields)...)
}

func Error(event string, err error, fields map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Error(event, append(fieldsOf(fields), zap.Error(err))...)
}
