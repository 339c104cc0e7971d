// Package httpclient provides an HTTP client instrumented with the o11y package. Each call is
// a single attempt bounded by a timeout, over a pool of per host connections.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/circleci/todo/o11y"
)

const JSON = "application/json; charset=utf-8"

var (
	// ErrTransport is wrapped by every failure to get a response: building the request,
	// DNS, connect, TLS, or the per call timeout.
	ErrTransport = errors.New("transport failure")
	// ErrDecode is wrapped by decoder failures on a 2XX response.
	ErrDecode = errors.New("decoding failure")
	// ErrNoContent is returned for a 204 response, the decoder is not called.
	ErrNoContent = o11y.NewWarning("no content")
)

// Config provides the client configuration
type Config struct {
	// Name is used to identify the client in spans
	Name string
	// BaseURL is the URL and optional path prefix to the server that this is a client of.
	BaseURL string
	// AcceptType if set will be used to set the Accept header.
	AcceptType string
	// Timeout is the default per call timeout, 5 seconds if not set.
	Timeout time.Duration
	// MaxConnectionsPerHost sets the connection pool size
	MaxConnectionsPerHost int
}

// Client is the o11y instrumented http client. It is safe for concurrent use.
type Client struct {
	name       string
	baseURL    string
	timeout    time.Duration
	acceptType string
	httpClient *http.Client
}

// New creates a client configured with the config param
func New(cfg Config) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConnectionsPerHost == 0 {
		cfg.MaxConnectionsPerHost = 10
	}
	t.MaxConnsPerHost = cfg.MaxConnectionsPerHost
	t.MaxIdleConnsPerHost = cfg.MaxConnectionsPerHost

	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		acceptType: cfg.AcceptType,
		httpClient: &http.Client{
			Transport: t,
		},
	}
}

// CloseIdleConnections is only used for testing.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

type Decoder func(r io.Reader) error

// Request is an individual http request that the Client will send
type Request struct {
	Method        string
	Route         string
	Body          interface{} // If set this will be sent as JSON
	Decoder       Decoder     // If set will be used to decode a 2XX response body
	Headers       map[string]string
	Timeout       time.Duration // Overrides the client timeout for this call
	Query         url.Values
	NoPropagation bool

	url string
}

// NewRequest should be used to create a new request rather than constructing a Request directly.
// This encourages the user to specify a "route" for the tracing, and avoid high cardinality routes
// (when parts of the url may contain many varying values).
// The returned Request can be further altered before being passed to the client.Call.
func NewRequest(method, route string, timeout time.Duration, routeParams ...interface{}) Request {
	return Request{
		Method:  method,
		url:     fmt.Sprintf(route, routeParams...),
		Route:   route,
		Timeout: timeout,
	}
}

// Call makes a single attempt at the request.
// If the call completed with a non 2XX status code an *HTTPError is returned and the decoder
// is never called. The response body is always drained and closed.
func (c *Client) Call(ctx context.Context, r Request) (err error) {
	ctx, span := o11y.StartSpan(ctx, fmt.Sprintf("httpclient: %s %s", c.name, r.Route),
		o11y.WithSpanKind(o11y.SpanKindClient))
	defer o11y.End(span, &err)
	before := time.Now()

	span.AddRawField("http.client_name", c.name)
	span.AddRawField("http.route", r.Route)
	span.AddRawField("http.base_url", c.baseURL)

	timeout := r.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return fmt.Errorf("call: %s %s: %w: %w", r.Method, r.Route, ErrTransport, err)
	}
	addReqToSpan(span, req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		// url errors repeat the method and url which clutters metrics and logging
		e := &url.Error{}
		if errors.As(err, &e) {
			err = e.Err
		}
		return fmt.Errorf("call: %s %s failed: %w: %w", req.Method, r.Route, ErrTransport, err)
	}
	defer func() {
		// drain anything left in the body and close it, keep alive needs both
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	_ = o11y.FromContext(ctx).MetricsProvider().TimeInMilliseconds("httpclient",
		float64(time.Since(before).Nanoseconds())/1000000.0,
		[]string{
			"http.client_name:" + c.name,
			"http.route:" + r.Route,
			"http.method:" + r.Method,
			"http.status_code:" + strconv.Itoa(res.StatusCode),
		},
		1,
	)
	addRespToSpan(span, res)

	err = extractHTTPError(req, res, r.Route)
	if err != nil {
		return err
	}
	if r.Decoder == nil {
		return nil
	}
	err = r.Decoder(res.Body)
	if err != nil {
		return fmt.Errorf("call: %s %s: %w: %w", req.Method, r.Route, ErrDecode, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	// most clients should use NewRequest, but if they created a Request directly
	// use the raw Route
	if r.url == "" {
		r.url = r.Route
	}
	u, err := url.Parse(c.baseURL + r.url)
	if err != nil {
		return nil, err
	}
	u.RawQuery = r.Query.Encode() // returns "" if Query is nil

	var body io.Reader
	if r.Body != nil {
		b := &bytes.Buffer{}
		if err := json.NewEncoder(b).Encode(r.Body); err != nil {
			return nil, fmt.Errorf("could not json encode request: %w", err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", JSON)
	}
	if c.acceptType != "" {
		req.Header.Set("Accept", c.acceptType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if !r.NoPropagation {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	}
	return req, nil
}

func addReqToSpan(span o11y.Span, req *http.Request) {
	span.AddRawField("meta.type", "http_client")
	span.AddRawField("http.scheme", req.URL.Scheme)
	span.AddRawField("http.host", req.URL.Host)
	span.AddRawField("http.target", req.URL.Path)
	span.AddRawField("http.method", req.Method)
	span.AddRawField("http.url", req.URL.String())
	span.AddRawField("http.user_agent", req.UserAgent())
	span.AddRawField("http.request_content_length", req.ContentLength)
}

func addRespToSpan(span o11y.Span, res *http.Response) {
	if cl := res.Header.Get("Content-Length"); cl != "" {
		span.AddRawField("http.response_content_length", cl)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		span.AddRawField("http.response_content_type", ct)
	}
	span.AddRawField("http.status_code", res.StatusCode)
}

// NewJSONDecoder reads the whole body and unmarshals it into resp. A body holding anything
// after the first JSON value is rejected.
func NewJSONDecoder(resp interface{}) Decoder {
	return func(r io.Reader) error {
		bs, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if err := json.Unmarshal(bs, resp); err != nil {
			return fmt.Errorf("failed to unmarshal: %w", err)
		}
		return nil
	}
}

// NewBytesDecoder decodes the response body into a byte slice
func NewBytesDecoder(resp *[]byte) Decoder {
	return func(r io.Reader) error {
		bs, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*resp = bs
		return nil
	}
}

// NewStringDecoder decodes the response body into a string
func NewStringDecoder(resp *string) Decoder {
	return func(r io.Reader) error {
		var bs []byte
		err := NewBytesDecoder(&bs)(r)
		if err != nil {
			return err
		}
		*resp = string(bs)
		return nil
	}
}

// HTTPError represents an error in an HTTP call when the response status code is not 2XX
type HTTPError struct {
	method string
	route  string
	code   int
}

var _ error = (*HTTPError)(nil)

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("the response from %s %s was %d (%s)",
		e.method, e.route, e.code, http.StatusText(e.code))
}

// Code returns the status code recorded in this error.
func (e *HTTPError) Code() int {
	return e.code
}

// Is reports 401, 403 and 404 as o11y warnings so they do not appear in traces as errors.
func (e *HTTPError) Is(target error) bool {
	if o11y.IsWarningNoUnwrap(target) {
		return e.code > 400 && e.code <= 404
	}
	return false
}

// HasStatusCode tests err for HTTPError and returns true if any of the codes
// match the stored code.
func HasStatusCode(err error, codes ...int) bool {
	e := &HTTPError{}
	if errors.As(err, &e) {
		for _, code := range codes {
			if e.code == code {
				return true
			}
		}
	}
	return false
}

// IsRequestProblem checks the err for HTTPError and returns true if the stored status code
// is in the 4xx range
func IsRequestProblem(err error) bool {
	e := &HTTPError{}
	if errors.As(err, &e) {
		return e.code >= 400 && e.code < 500
	}
	return false
}

func IsNoContent(err error) bool {
	return errors.Is(err, ErrNoContent)
}

// extractHTTPError returns an HTTPError if the response status code is >=300, ErrNoContent
// for a 204, otherwise nil.
func extractHTTPError(req *http.Request, res *http.Response, route string) error {
	switch {
	case res.StatusCode >= 300:
		return &HTTPError{
			method: req.Method,
			route:  route,
			code:   res.StatusCode,
		}
	case res.StatusCode == http.StatusNoContent:
		return ErrNoContent
	}
	return nil
}
