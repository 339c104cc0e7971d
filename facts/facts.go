// Package facts fetches random facts from the external fact API.
package facts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/httpclient"
	"github.com/circleci/todo/o11y"
)

const (
	randomRoute = "/facts/random"
	jsonType    = "application/json"
)

// Getter fetches a single fact.
type Getter interface {
	RandomFact(ctx context.Context) (string, error)
}

// Fact is the upstream response. Text is a pointer so a missing field can be told apart from
// an empty one.
type Fact struct {
	Text *string `json:"text" validate:"required"`
}

// Config locates the fact API.
type Config struct {
	BaseURL string
	// Timeout bounds each call, the httpclient default applies if zero.
	Timeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	http     *httpclient.Client
	validate *validator.Validate
}

var _ Getter = (*Client)(nil)

// New returns a client for the fact API at cfg.BaseURL.
func New(cfg Config) *Client {
	return &Client{
		http: httpclient.New(httpclient.Config{
			Name:       "facts",
			BaseURL:    cfg.BaseURL,
			AcceptType: jsonType,
			Timeout:    cfg.Timeout,
		}),
		validate: validator.New(),
	}
}

// RandomFact makes one GET to the fact API. The response status is checked before the body
// is decoded, a non 2XX body is discarded.
func (c *Client) RandomFact(ctx context.Context) (text string, err error) {
	const op = "facts: random"
	ctx, span := o11y.StartSpan(ctx, op)
	defer o11y.End(span, &err)

	var fact Fact
	req := httpclient.NewRequest(http.MethodGet, randomRoute, 0)
	req.Headers = map[string]string{"Content-Type": jsonType}
	req.Decoder = httpclient.NewJSONDecoder(&fact)

	// Status and no content failures keep only the text of the httpclient error, its chain
	// reports some of them as o11y warnings and these are errors for a fact lookup.
	err = c.http.Call(ctx, req)
	httpErr := &httpclient.HTTPError{}
	switch {
	case errors.As(err, &httpErr):
		return "", errs.Upstream(op, httpErr.Code(), fmt.Errorf("%v", err)) //nolint:errorlint
	case errors.Is(err, httpclient.ErrDecode):
		return "", errs.New(errs.Decode, op, err)
	case httpclient.IsNoContent(err):
		return "", errs.New(errs.Decode, op, fmt.Errorf("empty response: %v", err)) //nolint:errorlint
	case err != nil:
		return "", errs.New(errs.Transport, op, err)
	}

	if err = c.validate.Struct(fact); err != nil {
		return "", errs.New(errs.Decode, op, fmt.Errorf("invalid fact: %w", err))
	}
	span.AddField("text_length", len(*fact.Text))
	return *fact.Text, nil
}
