package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Ivanjochie0/luxuryproducts-cart/pkg/database"

// QueryTracer is a pgx.QueryTracer that opens a client span per statement
// and warns when one runs longer than SlowThreshold. Install it on the
// connection config; NewPostgresPool does.
type QueryTracer struct {
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	verb string
	span trace.Span
}

// TraceQueryStart implements pgx.QueryTracer.
func (q *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	verb := statementVerb(data.SQL)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "postgres "+verb,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", verb),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), verb: verb, span: span})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (q *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := time.Since(start.at)

	if data.Err != nil {
		start.span.RecordError(data.Err)
		start.span.SetStatus(codes.Error, data.Err.Error())
	} else {
		start.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	start.span.End()

	if q.Logger != nil && q.SlowThreshold > 0 && elapsed >= q.SlowThreshold {
		q.Logger.WarnContext(ctx, "slow query",
			slog.String("operation", start.verb),
			slog.Duration("duration", elapsed),
			slog.Duration("threshold", q.SlowThreshold),
		)
	}
}

// statementVerb is the first keyword of sql, upper cased.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(fields[0])
}
