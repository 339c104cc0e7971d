// Package errs is the error taxonomy shared by the todo store and the fact client.
//
// Every failure leaving those components is an *Error carrying a Kind and the wrapped
// cause. Callers branch on the kind with errors.Is against the Err* sentinels, or with
// KindOf, and surface it with HTTPStatus or ExitCode so that storage, upstream and data
// faults stay distinguishable to operators.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Unknown Kind = iota
	// PoolAcquire means the connection pool could not supply a connection.
	PoolAcquire
	// SchemaLoad means the schema resource could not be read.
	SchemaLoad
	// SchemaExec means the schema statements failed to execute.
	SchemaExec
	// Query means a read or write failed at the storage engine.
	Query
	// Decode means a row or response body did not have the expected shape.
	Decode
	// Transport means the external API could not be reached.
	Transport
	// UpstreamStatus means the external API answered with a non-success status.
	UpstreamStatus
)

var kindNames = map[Kind]string{
	Unknown:        "unknown",
	PoolAcquire:    "pool_acquire",
	SchemaLoad:     "schema_load",
	SchemaExec:     "schema_exec",
	Query:          "query",
	Decode:         "decode",
	Transport:      "transport",
	UpstreamStatus: "upstream_status",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for use with errors.Is. They match any *Error of the same kind.
var (
	ErrPoolAcquire    error = &Error{Kind: PoolAcquire}
	ErrSchemaLoad     error = &Error{Kind: SchemaLoad}
	ErrSchemaExec     error = &Error{Kind: SchemaExec}
	ErrQuery          error = &Error{Kind: Query}
	ErrDecode         error = &Error{Kind: Decode}
	ErrTransport      error = &Error{Kind: Transport}
	ErrUpstreamStatus error = &Error{Kind: UpstreamStatus}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, eg. "todos: list"
	Op string
	// Status is the upstream HTTP status code, only set for UpstreamStatus
	Status int
	Err    error
}

// New classifies err as kind, naming the failed op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Upstream classifies a non-success response from the external API.
func Upstream(op string, status int, err error) error {
	return &Error{Kind: UpstreamStatus, Op: op, Status: status, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == UpstreamStatus && e.Status != 0 {
		msg = fmt.Sprintf("%s %d (%s)", msg, e.Status, http.StatusText(e.Status))
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match for another *Error of the same kind that carries no cause, which is
// how the sentinels are built.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// KindOf returns the kind of the first *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	e := &Error{}
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// StatusOf returns the upstream status code if err is an UpstreamStatus error.
func StatusOf(err error) (int, bool) {
	e := &Error{}
	if errors.As(err, &e) && e.Kind == UpstreamStatus {
		return e.Status, true
	}
	return 0, false
}

// HTTPStatus maps err to the status an API should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case PoolAcquire:
		return http.StatusServiceUnavailable
	case Transport, UpstreamStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps err to a process exit code, zero for a nil error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch k := KindOf(err); k {
	case Unknown:
		return 1
	default:
		return 9 + int(k)
	}
}
