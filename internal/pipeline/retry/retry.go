package retry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

// StatusCoder is implemented by errors carrying an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTransient,
		reason: "explicit_transient",
	}
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTerminal,
		reason: "explicit_terminal",
	}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{Class: ClassTerminal, Reason: "sql_no_rows"}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return Decision{Class: ClassTransient, Reason: "sql_bad_conn"}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPQCode(pqErr.Code)
	}

	var coded StatusCoder
	if errors.As(err, &coded) {
		return classifyHTTPStatus(coded.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Decision{Class: ClassTransient, Reason: "net_timeout"}
		}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

// classifyPQCode maps SQLSTATE classes onto retry decisions.
func classifyPQCode(code pq.ErrorCode) Decision {
	switch {
	case code.Class() == "08":
		return Decision{Class: ClassTransient, Reason: "pq_connection_exception"}
	case code.Class() == "53":
		return Decision{Class: ClassTransient, Reason: "pq_insufficient_resources"}
	case code == "40001" || code == "40P01":
		return Decision{Class: ClassTransient, Reason: "pq_transaction_rollback"}
	case code == "57014":
		return Decision{Class: ClassTransient, Reason: "pq_query_canceled"}
	case code == "57P01" || code == "57P02" || code == "57P03":
		return Decision{Class: ClassTransient, Reason: "pq_server_shutdown"}
	default:
		return Decision{Class: ClassTerminal, Reason: "pq_" + string(code)}
	}
}

func classifyHTTPStatus(code int) Decision {
	reason := "http_" + strconv.Itoa(code)
	switch {
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return Decision{Class: ClassTransient, Reason: reason}
	case code >= 500:
		return Decision{Class: ClassTransient, Reason: reason}
	default:
		return Decision{Class: ClassTerminal, Reason: reason}
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"too many requests",
	"rate limit",
	"server closed idle connection",
	"too many connections",
}

var terminalMessageTokens = []string{
	"invalid argument",
	"parse error",
	"not found",
	"syntax error",
	"permission denied",
	"constraint violation",
}
