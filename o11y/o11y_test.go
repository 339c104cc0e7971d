package o11y

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFromContext(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		p := FromContext(context.Background())
		assert.Check(t, cmp.Equal(p, defaultProvider))
	})

	t.Run("provider in context", func(t *testing.T) {
		expected := &fakeProvider{}
		ctx := WithProvider(context.Background(), expected)
		assert.Check(t, cmp.Equal(FromContext(ctx), Provider(expected)))
	})
}

func TestStartSpan_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	nCtx, span := StartSpan(ctx, "todos: list")
	assert.Check(t, span != nil, "should have returned a noop span")
	assert.Check(t, cmp.Equal(ctx, nCtx), "should have returned ctx unmodified")

	Log(ctx, "no provider", Field("name", "value"))
	LogError(ctx, "no provider", errors.New("not recorded"))
}

func TestHandlePanic(t *testing.T) {
	ctx := context.Background()
	var err error
	func() {
		defer func() {
			err = HandlePanic(ctx, FromContext(ctx).GetSpan(ctx), recover(), nil)
		}()
		panic("lease lost")
	}()
	assert.Check(t, cmp.ErrorContains(err, "lease lost"))
}

func TestAddResultToSpan(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		result  string
		error   string
		warning string
	}{
		{
			name:   "success",
			result: "success",
		},
		{
			name:   "error",
			err:    errors.New("query failed"),
			result: "error",
			error:  "query failed",
		},
		{
			name:    "warning",
			err:     NewWarning("no rows"),
			result:  "success",
			warning: "no rows",
		},
		{
			name:    "wrapped-warning",
			err:     fmt.Errorf("todos: %w", NewWarning("no rows")),
			result:  "success",
			warning: "todos: no rows",
		},
		{
			name:    "canceled",
			err:     fmt.Errorf("lease: %w", context.Canceled),
			result:  "canceled",
			warning: "lease: context canceled",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			result:  "canceled",
			warning: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := newFakeSpan()
			AddResultToSpan(span, tt.err)
			span.check(t, "result", tt.result)
			span.check(t, "error", tt.error)
			span.check(t, "warning", tt.warning)
		})
	}
}

func TestEnd(t *testing.T) {
	t.Run("captures the last assigned error", func(t *testing.T) {
		p := &fakeProvider{}
		ctx := WithProvider(context.Background(), p)

		err := func() (err error) {
			_, span := StartSpan(ctx, "op")
			defer End(span, &err)
			err = errors.New("late error")
			return err
		}()

		assert.Check(t, cmp.Error(err, "late error"))
		assert.Check(t, p.span.ended)
		p.span.check(t, "error", "late error")
	})

	t.Run("nil pointer", func(t *testing.T) {
		span := newFakeSpan()
		End(span, nil)
		assert.Check(t, span.ended)
		span.check(t, "result", "success")
	})
}

func TestGlobals(t *testing.T) {
	t.Run("with mode", func(t *testing.T) {
		g := Globals{Service: "todo", Version: "1.2.3", Mode: "serve"}
		p := &globalsProvider{fields: map[string]interface{}{}}
		g.Apply(p)
		assert.Check(t, cmp.DeepEqual(p.fields, map[string]interface{}{
			"service": "todo",
			"version": "1.2.3",
			"mode":    "serve",
		}))
		assert.Check(t, cmp.DeepEqual(g.Tags(), []string{"service:todo", "version:1.2.3", "mode:serve"}))
	})

	t.Run("without mode", func(t *testing.T) {
		g := Globals{Service: "todo", Version: "dev"}
		assert.Check(t, cmp.DeepEqual(g.Tags(), []string{"service:todo", "version:dev"}))
	})
}

type globalsProvider struct {
	Provider
	fields map[string]interface{}
}

func (p *globalsProvider) AddGlobalField(key string, val interface{}) { p.fields[key] = val }

func TestApplySpanOpts(t *testing.T) {
	assert.Check(t, cmp.Equal(ApplySpanOpts().Kind, SpanKindInternal))
	assert.Check(t, cmp.Equal(ApplySpanOpts(WithSpanKind(SpanKindClient)).Kind, SpanKindClient))
}

type fakeSpan struct {
	fields map[string]interface{}
	ended  bool
}

func newFakeSpan() *fakeSpan {
	return &fakeSpan{fields: map[string]interface{}{}}
}

func (s *fakeSpan) AddField(key string, val interface{})    { s.fields["app."+key] = val }
func (s *fakeSpan) AddRawField(key string, val interface{}) { s.fields[key] = val }
func (s *fakeSpan) RecordMetric(Metric)                     {}
func (s *fakeSpan) End()                                    { s.ended = true }

func (s *fakeSpan) check(t *testing.T, key, expect string) {
	t.Helper()
	if expect == "" {
		_, ok := s.fields[key]
		assert.Check(t, !ok, key)
		return
	}
	assert.Check(t, cmp.Equal(s.fields[key], expect))
}

type fakeProvider struct {
	Provider
	span *fakeSpan
}

func (p *fakeProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOpt) (context.Context, Span) {
	p.span = newFakeSpan()
	return ctx, p.span
}
