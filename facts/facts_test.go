package facts

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/testing/httprecorder"
	"github.com/circleci/todo/testing/testcontext"
)

func TestClient_RandomFact(t *testing.T) {
	ctx := testcontext.Background()
	client, rec := newFixture(t, http.StatusOK, `{"text": "Cats sleep 70% of their lives.", "type": "cat"}`)

	text, err := client.RandomFact(ctx)
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(text, "Cats sleep 70% of their lives."))

	all := rec.AllRequests()
	assert.Assert(t, cmp.Len(all, 1))
	req := all[0]
	assert.Check(t, cmp.Equal(req.Method, http.MethodGet))
	assert.Check(t, cmp.Equal(req.URL.Path, "/facts/random"))
	assert.Check(t, cmp.Equal(req.URL.RawQuery, ""))
	assert.Check(t, cmp.Len(req.Body, 0))
	assert.Check(t, cmp.DeepEqual(req.Header, http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
	}, httprecorder.OnlyHeaders("Accept", "Content-Type")))
}

func TestClient_RandomFact_EmptyTextIsValid(t *testing.T) {
	ctx := testcontext.Background()
	client, _ := newFixture(t, http.StatusOK, `{"text": ""}`)

	text, err := client.RandomFact(ctx)
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(text, ""))
}

func TestClient_RandomFact_StatusBeforeDecode(t *testing.T) {
	ctx := testcontext.Background()

	for _, tt := range []struct {
		name string
		code int
		body string
	}{
		{name: "server error with a fact body", code: http.StatusInternalServerError, body: `{"text": "not a fact"}`},
		{name: "not found with html", code: http.StatusNotFound, body: `<html>nope</html>`},
		{name: "bad gateway with nothing", code: http.StatusBadGateway},
		{name: "redirect without location", code: http.StatusMultipleChoices, body: `{"text": "x"}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newFixture(t, tt.code, tt.body)

			text, err := client.RandomFact(ctx)
			assert.Check(t, cmp.Equal(text, ""))
			assert.Check(t, cmp.ErrorIs(err, errs.ErrUpstreamStatus))
			assert.Check(t, !errors.Is(err, errs.ErrDecode))
			assert.Check(t, !o11y.IsWarning(err), "a failed lookup must be recorded as an error")

			status, ok := errs.StatusOf(err)
			assert.Check(t, ok)
			assert.Check(t, cmp.Equal(status, tt.code))
			assert.Check(t, cmp.Equal(errs.HTTPStatus(err), http.StatusBadGateway))
		})
	}
}

func TestClient_RandomFact_DecodeFailures(t *testing.T) {
	ctx := testcontext.Background()

	for _, tt := range []struct {
		name string
		body string
	}{
		{name: "missing text", body: `{"type": "cat"}`},
		{name: "null text", body: `{"text": null}`},
		{name: "malformed json", body: `{"text": `},
		{name: "wrong type", body: `{"text": 7}`},
		{name: "not json", body: `Cats sleep a lot`},
		{name: "trailing bytes", body: `{"text": "a"} trailing`},
		{name: "two values", body: `{"text": "a"}{"text": "b"}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newFixture(t, http.StatusOK, tt.body)

			_, err := client.RandomFact(ctx)
			assert.Check(t, cmp.ErrorIs(err, errs.ErrDecode))
			assert.Check(t, cmp.Equal(errs.KindOf(err), errs.Decode))
		})
	}
}

func TestClient_RandomFact_NoContent(t *testing.T) {
	ctx := testcontext.Background()
	client, _ := newFixture(t, http.StatusNoContent, "")

	_, err := client.RandomFact(ctx)
	assert.Check(t, cmp.ErrorIs(err, errs.ErrDecode))
	assert.Check(t, cmp.ErrorContains(err, "empty response"))
	assert.Check(t, !o11y.IsWarning(err))
}

func TestClient_RandomFact_Transport(t *testing.T) {
	ctx := testcontext.Background()

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		_, err := New(Config{BaseURL: baseURL}).RandomFact(ctx)
		assert.Check(t, cmp.ErrorIs(err, errs.ErrTransport))
		_, hasStatus := errs.StatusOf(err)
		assert.Check(t, !hasStatus)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(server.Close)

		_, err := New(Config{BaseURL: server.URL, Timeout: 10 * time.Millisecond}).RandomFact(ctx)
		assert.Check(t, cmp.ErrorIs(err, errs.ErrTransport))
	})

	t.Run("bad base url", func(t *testing.T) {
		_, err := New(Config{BaseURL: "://nowhere"}).RandomFact(ctx)
		assert.Check(t, cmp.ErrorIs(err, errs.ErrTransport))
	})
}

func TestClient_RandomFact_Concurrent(t *testing.T) {
	ctx := testcontext.Background()
	client, rec := newFixture(t, http.StatusOK, `{"text": "shared"}`)

	const n = 10
	errC := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			text, err := client.RandomFact(ctx)
			if err == nil && text != "shared" {
				err = errors.New("unexpected text " + text)
			}
			errC <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.Check(t, <-errC)
	}
	assert.Check(t, cmp.Equal(rec.Count(http.MethodGet, "/facts/random"), n))
}

func newFixture(t *testing.T, code int, body string) (*Client, *httprecorder.RequestRecorder) {
	t.Helper()
	rec := httprecorder.New()
	server := httptest.NewServer(rec.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facts/random" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})))
	t.Cleanup(server.Close)

	return New(Config{BaseURL: strings.TrimSuffix(server.URL, "/")}), rec
}
