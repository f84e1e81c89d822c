// Package errs provides the logging/error-reporting conventions shared
// across mongosrv: a single LogError call at the point an error is handled,
// carrying structured zap fields, so operators can grep one shape of line
// regardless of which subsystem produced it.
package errs

import "go.uber.org/zap"

// LogError logs err at Error level alongside msg and any extra structured
// fields. Callers still propagate the original err up the call stack; this
// only records it for observability at the point it's first recognized.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if logger == nil || err == nil {
		return
	}
	allFields := make([]zap.Field, 0, len(fields)+1)
	allFields = append(allFields, zap.Error(err))
	allFields = append(allFields, fields...)
	logger.Error(msg, allFields...)
}
