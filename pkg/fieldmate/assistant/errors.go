// Package assistant implements the FieldMate core: the natural-language
// action-dispatch engine. It interprets a user utterance with an LLM,
// validates and repairs the structured result, executes the matching domain
// mutation exactly once, and synthesizes the user-facing reply.
package assistant

import "fmt"

// ErrorKind classifies domain errors for handling policy decisions.
type ErrorKind int

const (
	// KindValidation is a missing or malformed required parameter.
	// Always recoverable; never fatal.
	KindValidation ErrorKind = iota

	// KindNotFound means entity resolution failed, or the record belongs to
	// another account. The two causes are deliberately indistinguishable.
	KindNotFound

	// KindUpstreamParse means the LLM reply was not valid structured output.
	KindUpstreamParse

	// KindExternalSync is an accounting-system or email-delivery failure.
	// Never blocks or reverts the local mutation.
	KindExternalSync

	// KindInvariant is a domain rule violation (end before start, negative
	// amount), rejected before any mutation.
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstreamParse:
		return "upstream_parse"
	case KindExternalSync:
		return "external_sync"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// DomainError is a typed, user-presentable error from the core.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// notFoundMessage is uniform across "does not exist" and "belongs to another
// account" so record existence never leaks across accounts.
const notFoundMessage = "not found or no permission"

func errNotFound(what string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: what + " " + notFoundMessage}
}

func errValidation(msg string) *DomainError {
	return &DomainError{Kind: KindValidation, Message: msg}
}

func errInvariant(msg string) *DomainError {
	return &DomainError{Kind: KindInvariant, Message: msg}
}

func errUpstreamParse(err error) *DomainError {
	return &DomainError{Kind: KindUpstreamParse, Message: "could not parse model response", Err: err}
}
