package introspection

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies introspection failures.
type ErrorKind int

const (
	// KindNotFound means the table or column does not exist.
	KindNotFound ErrorKind = iota + 1
	// KindUnsupported means the engine or source cannot answer the request.
	KindUnsupported
	// KindConnectionFailed means a catalog or probe query failed or timed out.
	KindConnectionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported"
	case KindConnectionFailed:
		return "connection failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *SchemaError.
var (
	ErrNotFound         = errors.New("schema object not found")
	ErrUnsupported      = errors.New("unsupported introspection request")
	ErrConnectionFailed = errors.New("schema query failed")
)

// SchemaError reports a failed introspection call.
type SchemaError struct {
	Kind  ErrorKind
	Op    string
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	msg := e.Op
	if e.Table != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Table)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Kind)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *SchemaError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	case ErrConnectionFailed:
		return e.Kind == KindConnectionFailed
	}
	return false
}

func notFound(op, table string, err error) error {
	return &SchemaError{Kind: KindNotFound, Op: op, Table: table, Err: err}
}

func unsupported(op, table string, err error) error {
	return &SchemaError{Kind: KindUnsupported, Op: op, Table: table, Err: err}
}

// queryFailed wraps a driver or scan failure. Errors that are already
// classified pass through unchanged; timeouts count as connection failures.
func queryFailed(op, table string, err error) error {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("query timed out: %w", err)
	}
	return &SchemaError{Kind: KindConnectionFailed, Op: op, Table: table, Err: err}
}
