package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scribehub/transcriber/pkg/requestid"
)

// StructuredLogger wraps a named zap logger and builds per-operation tracers.
// Services create one logger per component and one tracer per operation call.
type StructuredLogger struct {
	logger *zap.SugaredLogger
}

func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{logger: zap.S().Named(name)}
}

// WithContext attaches the request/job correlation id carried by ctx, if any.
func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	if id := requestid.FromContext(ctx); id != "" {
		return &StructuredLogger{logger: l.logger.With("request_id", id)}
	}
	return l
}

func (l *StructuredLogger) Operation(name string) *OperationBuilder {
	return &OperationBuilder{
		logger: l.logger,
		op:     name,
		fields: []any{"operation", name},
	}
}

type OperationBuilder struct {
	logger *zap.SugaredLogger
	op     string
	fields []any
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, key, value.String())
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) Build() *Tracer {
	return &Tracer{
		logger:  b.logger.With(b.fields...),
		op:      b.op,
		started: time.Now(),
	}
}

// Tracer records the outcome of a single operation.
type Tracer struct {
	logger  *zap.SugaredLogger
	op      string
	started time.Time
}

func (t *Tracer) Success() *ResultBuilder {
	return &ResultBuilder{tracer: t, level: "info", fields: []any{"result", "success"}}
}

func (t *Tracer) Error(err error) *ResultBuilder {
	return &ResultBuilder{tracer: t, level: "error", fields: []any{"result", "error", "error", err}}
}

type ResultBuilder struct {
	tracer *Tracer
	level  string
	fields []any
}

func (r *ResultBuilder) WithString(key, value string) *ResultBuilder {
	r.fields = append(r.fields, key, value)
	return r
}

func (r *ResultBuilder) WithInt(key string, value int) *ResultBuilder {
	r.fields = append(r.fields, key, value)
	return r
}

func (r *ResultBuilder) WithBool(key string, value bool) *ResultBuilder {
	r.fields = append(r.fields, key, value)
	return r
}

func (r *ResultBuilder) WithParam(key string, value any) *ResultBuilder {
	r.fields = append(r.fields, key, value)
	return r
}

func (r *ResultBuilder) Log() {
	fields := append(r.fields, "duration_ms", time.Since(r.tracer.started).Milliseconds())
	logger := r.tracer.logger.With(fields...)
	if r.level == "error" {
		logger.Errorf("%s failed", r.tracer.op)
		return
	}
	logger.Debugf("%s succeeded", r.tracer.op)
}
