package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure. A Kind is itself an error so callers can test
// wrapped chains with errors.Is(err, services.KindNotFound).
type Kind string

const (
	KindMalformedID        Kind = "malformed_id"
	KindMissingIDs         Kind = "missing_ids"
	KindTooManyIDs         Kind = "too_many_ids"
	KindNotFound           Kind = "not_found"
	KindAlreadyMerged      Kind = "already_merged"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindUnreadableMedia    Kind = "unreadable_media"
	KindEncodeFailed       Kind = "encode_failed"
	KindIncompatible       Kind = "incompatible_streams"
	KindInvalidArtifact    Kind = "invalid_artifact"

	// KindInternal is reported for errors that carry no classification.
	KindInternal Kind = "internal"
)

func (k Kind) Error() string { return string(k) }

// ClientError reports whether the kind is caused by the request itself and
// should be answered with a 4xx status and a reason naming the offending id.
func (k Kind) ClientError() bool {
	switch k {
	case KindMalformedID, KindMissingIDs, KindTooManyIDs, KindNotFound, KindAlreadyMerged:
		return true
	default:
		return false
	}
}

// Error is a classified failure with stage context.
type Error struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	// IDs names the identifiers at fault, in request order.
	IDs []string
	Err error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if len(e.IDs) > 0 {
		detail += " (" + strings.Join(e.IDs, ", ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind so the Kind constants act as sentinels.
func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// ErrorKind exposes the classification as a plain string for status mapping.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Wrap builds an error message that includes stage context while tagging it with
// the provided kind for later status classification.
func Wrap(kind Kind, stage, operation, message string, err error) error {
	if kind == "" {
		kind = KindInternal
	}
	return &Error{Kind: kind, Stage: stage, Operation: operation, Message: message, Err: err}
}

// Reject builds a client-facing rejection naming the identifiers at fault.
func Reject(kind Kind, message string, ids ...string) error {
	return &Error{Kind: kind, Stage: "validate", Message: message, IDs: ids}
}

// KindOf returns the classification carried by err, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	var kind Kind
	if errors.As(err, &kind) {
		return kind
	}
	return KindInternal
}

// Reason renders the human-readable message a client sees. Server-side kinds
// get a generic message; the full diagnostic stays in logs and the ledger.
func Reason(err error) string {
	kind := KindOf(err)
	if !kind.ClientError() {
		return "video processing failed"
	}
	var classified *Error
	if errors.As(err, &classified) && classified.Message != "" {
		if len(classified.IDs) > 0 {
			return classified.Message + ": " + strings.Join(classified.IDs, ", ")
		}
		return classified.Message
	}
	return strings.ReplaceAll(string(kind), "_", " ")
}

// HTTPStatus maps err to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindMalformedID, KindMissingIDs, KindTooManyIDs, KindAlreadyMerged:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
