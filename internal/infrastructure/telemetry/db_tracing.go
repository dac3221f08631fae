package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowStatement is the SlowOver of NewDBTracing
const DefaultSlowStatement = 200 * time.Millisecond

// DBTracing is a gorm plugin. It installs otelgorm and annotates each
// statement span with its table, affected rows, failure and slowness.
type DBTracing struct {
	System        string        // Reported as the database name
	WithVariables bool          // Bound values in spans, development only
	SlowOver      time.Duration // Zero disables the slow_query event
	logger        *zap.Logger
}

// NewDBTracing traces postgres statements without their bound values
func NewDBTracing(logger *zap.Logger) *DBTracing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracing{System: "postgresql", SlowOver: DefaultSlowStatement, logger: logger}
}

// Name implements gorm.Plugin
func (p *DBTracing) Name() string { return "backoffice:tracing" }

// callback is what gorm's Before and After hand back
type callback interface {
	Register(name string, fn func(*gorm.DB)) error
}

// Initialize implements gorm.Plugin
func (p *DBTracing) Initialize(db *gorm.DB) error {
	opts := []otelgorm.Option{otelgorm.WithDBName(p.System)}
	if !p.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to install otelgorm: %w", err)
	}

	cb := db.Callback()
	stages := []struct {
		name          string
		before, after callback
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	var errs []error
	for _, s := range stages {
		errs = append(errs,
			s.before.Register("backoffice:stamp_"+s.name, stamp),
			s.after.Register("backoffice:annotate_"+s.name, p.annotate),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.String("system", p.System),
		zap.Bool("with_variables", p.WithVariables),
		zap.Duration("slow_over", p.SlowOver),
	)
	return nil
}

type statementStart struct{}

func stamp(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, statementStart{}, time.Now())
	}
}

func (p *DBTracing) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", db.Statement.RowsAffected)}
	if db.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attrs...)

	if !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		Fail(span, db.Error)
	}

	start, ok := ctx.Value(statementStart{}).(time.Time)
	if !ok || p.SlowOver <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > p.SlowOver {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.SlowOver.Milliseconds()),
		))
	}
}
