package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every package that logs a model call.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldTask      = "task"
	FieldRequestID = "request_id"
)

// Call identifies one model invocation in logs. Empty members are omitted.
type Call struct {
	Provider  string
	Model     string
	Task      string
	RequestID string
}

// Fields converts the call into zap fields, trimming whitespace and skipping
// empty values to keep entries compact.
func (c Call) Fields() []zap.Field {
	pairs := [...][2]string{
		{FieldProvider, c.Provider},
		{FieldModel, c.Model},
		{FieldTask, c.Task},
		{FieldRequestID, c.RequestID},
	}

	result := make([]zap.Field, 0, len(pairs))
	for _, kv := range pairs {
		value := strings.TrimSpace(kv[1])
		if value == "" {
			continue
		}
		result = append(result, zap.String(kv[0], value))
	}
	return result
}

// WithFields safely attaches fields, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// WithCall attaches the call fields to the logger.
func WithCall(logger *zap.Logger, c Call) *zap.Logger {
	return WithFields(logger, c.Fields()...)
}
