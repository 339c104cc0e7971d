package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/todo/todos/todotest"
)

func TestAPI_unrouted(t *testing.T) {
	fix := startAPI(context.Background(), t, fakeFacts{})

	t.Run("unknown path", func(t *testing.T) {
		var got errorResponse
		status := fix.Get(t, "/api/todo", &got)
		assert.Check(t, cmp.Equal(status, http.StatusNotFound))
		assert.Check(t, cmp.Equal(got.Kind, "not_found"))
	})

	t.Run("unsupported method", func(t *testing.T) {
		var got errorResponse
		status := fix.Post(t, "/api/facts/random", map[string]string{}, &got)
		assert.Check(t, cmp.Equal(status, http.StatusMethodNotAllowed))
		assert.Check(t, cmp.Equal(got.Kind, "method_not_allowed"))
	})
}

type fakeFacts struct {
	text string
	err  error
}

func (f fakeFacts) RandomFact(context.Context) (string, error) {
	return f.text, f.err
}

type fixture struct {
	url   string
	Store *todotest.Store
}

func startAPI(ctx context.Context, t testing.TB, facts fakeFacts) *fixture {
	t.Helper()

	store := &todotest.Store{}
	api := New(ctx, Options{
		Store: store,
		Facts: facts,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &fixture{
		url:   srv.URL,
		Store: store,
	}
}

func (f *fixture) Get(t testing.TB, path string, v interface{}) (statusCode int) {
	t.Helper()

	resp, err := http.Get(f.url + path)
	assert.Assert(t, err)

	return decode(t, resp, v)
}

func (f *fixture) Post(t testing.TB, path string, body interface{}, v interface{}) (statusCode int) {
	t.Helper()

	b, ok := body.([]byte)
	if !ok {
		var err error
		b, err = json.Marshal(body)
		assert.Assert(t, err)
	}

	resp, err := http.Post(f.url+path, "application/json", bytes.NewReader(b))
	assert.Assert(t, err)

	return decode(t, resp, v)
}

func decode(t testing.TB, resp *http.Response, v interface{}) int {
	t.Helper()

	defer func() {
		assert.Check(t, resp.Body.Close())
	}()

	if v != nil {
		err := json.NewDecoder(resp.Body).Decode(v)
		assert.Assert(t, err)
	}

	return resp.StatusCode
}
