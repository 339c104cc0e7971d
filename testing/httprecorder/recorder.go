package httprecorder

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Request is a copy of a received request, taken before the handler ran.
type Request struct {
	Method string
	URL    url.URL
	Header http.Header
	Body   []byte
}

func (r Request) StringBody() string {
	return string(r.Body)
}

// Decode unmarshals the JSON body into x.
func (r Request) Decode(x interface{}) error {
	return json.Unmarshal(r.Body, x)
}

type RequestRecorder struct {
	mu   sync.Mutex
	seen []Request
}

func New() *RequestRecorder {
	return &RequestRecorder{}
}

// Handler records every request before passing it to next, which still sees the body.
func (r *RequestRecorder) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		copied, err := capture(req)
		if err != nil {
			http.Error(w, "httprecorder: "+err.Error(), http.StatusInternalServerError)
			return
		}
		r.mu.Lock()
		r.seen = append(r.seen, copied)
		r.mu.Unlock()

		next.ServeHTTP(w, req)
	})
}

func capture(req *http.Request) (Request, error) {
	c := Request{
		Method: req.Method,
		URL:    *req.URL,
		Header: req.Header.Clone(),
	}
	if req.Body == nil {
		return c, nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return c, err
	}
	c.Body = body
	req.Body = io.NopCloser(bytes.NewReader(body))
	return c, nil
}

func (r *RequestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}

func (r *RequestRecorder) AllRequests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.seen...)
}

// Count returns how many requests were made to method and path.
func (r *RequestRecorder) Count(method, path string) int {
	n := 0
	for _, req := range r.AllRequests() {
		if req.Method == method && req.URL.Path == path {
			n++
		}
	}
	return n
}

// LastRequest returns nil if nothing has been recorded.
func (r *RequestRecorder) LastRequest() *Request {
	all := r.AllRequests()
	if len(all) == 0 {
		return nil
	}
	return &all[len(all)-1]
}
