// Package agenterr provides the error taxonomy for Cascade (spec.md §7):
// Cancellation, ServiceOutage, Parse, Executor, and System categories,
// each with a stable Code, a user-facing Message, retry hints, and
// recovery Suggestions.
//
// Named agenterr rather than errors (the reference architecture's own
// package name) purely so call sites can `import "errors"` alongside it
// without an alias.
package agenterr

import (
	"errors"
	"fmt"
	"strings"
)

// Category determines how an error should be handled at the loop level.
type Category int

const (
	// CategoryCancellation is a voluntary sub-dialogue abort (ECANCELLED).
	CategoryCancellation Category = iota

	// CategoryServiceOutage covers unreachable/timed-out NLU, NLG, or
	// executor services.
	CategoryServiceOutage

	// CategoryParse covers program parse/type errors from the external
	// parser/type-checker.
	CategoryParse

	// CategoryExecutor covers errors raised while delivering executor
	// results; these do not cancel the session.
	CategoryExecutor

	// CategorySystem covers everything else: unexpected exceptions inside
	// the loop.
	CategorySystem

	// CategoryUser covers invalid input from the operator (bad config,
	// bad API key) that cannot be retried.
	CategoryUser
)

func (c Category) String() string {
	switch c {
	case CategoryCancellation:
		return "cancellation"
	case CategoryServiceOutage:
		return "service_outage"
	case CategoryParse:
		return "parse"
	case CategoryExecutor:
		return "executor"
	case CategorySystem:
		return "system"
	case CategoryUser:
		return "user"
	default:
		return "unknown"
	}
}

// Well-known error codes.
const (
	CodeCancelled            = "ECANCELLED"
	CodeQueueAlreadyWaiting  = "EQUEUE_WAITING"
	CodeServiceUnreachable   = "EHOSTUNREACH"
	CodeServiceTimeout       = "ETIMEDOUT"
	CodeParseFailed          = "EPARSE"
	CodeExecutorFailed       = "EEXECUTOR"
	CodeUnexpected           = "EUNEXPECTED"
	CodeNoHandler            = "ENOHANDLER"
)

// AppError is the main error type for all Cascade errors.
type AppError struct {
	Code        string
	Message     string
	Category    Category
	Inner       error
	Retryable   bool
	Suggestions []string
	Context     map[string]any
}

func (e *AppError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Inner
}

// UserMessage renders the error the way the loop apologizes to the user
// (spec.md §7's fixed apology strings, keyed by category).
func (e *AppError) UserMessage() string {
	switch e.Category {
	case CategoryCancellation:
		return "Sorry I couldn't help on that."
	case CategoryParse:
		return "Sorry, I don't know how to do that yet."
	case CategoryExecutor:
		return fmt.Sprintf("Sorry, that did not work: %s.", e.Message)
	default:
		return fmt.Sprintf("Sorry, I had an error processing your command: %s.", e.Message)
	}
}

// GetCategory extracts the Category from err, defaulting to CategorySystem
// if err is not an *AppError.
func GetCategory(err error) Category {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	return CategorySystem
}

// IsCancellation reports whether err is (or wraps) an ECANCELLED error.
func IsCancellation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeCancelled
	}
	return false
}

// IsRetryable reports whether err should be retried by the retry helpers
// in retry.go.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// Wrap wraps err into an AppError with the given code, message, and
// category.
func Wrap(err error, code, message string, category Category) *AppError {
	return &AppError{Code: code, Message: message, Category: category, Inner: err}
}

// Cancelled builds the single Cancellation signal used to abort a
// sub-dialogue (spec.md §5).
func Cancelled(reason string) *AppError {
	return &AppError{Code: CodeCancelled, Message: reason, Category: CategoryCancellation}
}

// Builder incrementally constructs an AppError.
type Builder struct {
	err *AppError
}

// NewBuilder starts building an AppError with the given code and message.
func NewBuilder(code, message string) *Builder {
	return &Builder{err: &AppError{Code: code, Message: message, Category: CategorySystem}}
}

func (b *Builder) Category(c Category) *Builder {
	b.err.Category = c
	return b
}

// Temporary marks the error retryable and categorizes it as a service
// outage.
func (b *Builder) Temporary() *Builder {
	b.err.Retryable = true
	b.err.Category = CategoryServiceOutage
	return b
}

func (b *Builder) Wrap(inner error) *Builder {
	b.err.Inner = inner
	return b
}

func (b *Builder) WithSuggestion(s string) *Builder {
	b.err.Suggestions = append(b.err.Suggestions, s)
	return b
}

func (b *Builder) WithContext(key string, value any) *Builder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]any)
	}
	b.err.Context[key] = value
	return b
}

func (b *Builder) Build() *AppError {
	return b.err
}

// SuggestionsText joins Suggestions into a single displayable string.
func (e *AppError) SuggestionsText() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return strings.Join(e.Suggestions, "; ")
}
