package otel

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/todo/internal/syncbuffer"
	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/testing/fakemetrics"
)

func TestProvider_Spans(t *testing.T) {
	buf := &syncbuffer.SyncBuffer{}
	metrics := &fakemetrics.Provider{}
	p, err := New(Config{
		Dataset: "local-testing",
		Writer:  buf,
		Test:    true,
		Metrics: metrics,
	})
	assert.NilError(t, err)

	p.AddGlobalField("service", "todo")
	ctx := o11y.WithProvider(context.Background(), p)

	func() (err error) {
		ctx, span := o11y.StartSpan(ctx, "todos: list")
		defer o11y.End(span, &err)
		span.AddField("count", 3)
		span.RecordMetric(o11y.Timing("db.query", "result"))

		o11y.AddField(ctx, "from_ctx", true)
		assert.Check(t, p.GetSpan(ctx) != nil)

		return errors.New("query failed")
	}()
	o11y.Log(ctx, "starting api", o11y.Field("version", "dev"))
	p.Close(ctx)

	out := buf.String()
	assert.Check(t, cmp.Contains(out, "todos: list app.count=3 app.from_ctx=true error=query failed result=error"))
	assert.Check(t, cmp.Contains(out, "starting api app.version=dev"))

	calls := metrics.Named("db.query")
	assert.Assert(t, cmp.Len(calls, 1))
	assert.Check(t, cmp.DeepEqual(calls[0].Tags, []string{"result:error"}))
	assert.Check(t, metrics.Closed())
}

func TestProvider_GetSpan_NoSpan(t *testing.T) {
	p, err := New(Config{Writer: &syncbuffer.SyncBuffer{}, Test: true})
	assert.NilError(t, err)
	defer p.Close(context.Background())

	assert.Check(t, p.GetSpan(context.Background()) == nil)
}

func TestMustValidateKey(t *testing.T) {
	defer func() {
		assert.Check(t, recover() != nil)
	}()
	mustValidateKey("bad-key")
}
