// SPDX-License-Identifier: LGPL-2.1-only

// Package mgmterror defines the structured error record that flows between
// the validator, the plugin registry, the transaction engine and the RPC
// dispatcher. It is the sole error currency exposed to callers: no other
// error channel exists alongside it.
package mgmterror

import (
	"fmt"
	"strings"
)

// Severity mirrors the NETCONF error-severity enumeration.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ErrorType is the closed error-type set.
type ErrorType string

const (
	TypeTransport   ErrorType = "transport"
	TypeRPC         ErrorType = "rpc"
	TypeProtocol    ErrorType = "protocol"
	TypeApplication ErrorType = "application"
)

// Tag is a NETCONF-defined closed-set error-tag symbol.
type Tag string

const (
	TagInUse                 Tag = "in-use"
	TagInvalidValue          Tag = "invalid-value"
	TagTooBig                Tag = "too-big"
	TagMissingAttribute      Tag = "missing-attribute"
	TagBadAttribute          Tag = "bad-attribute"
	TagUnknownAttribute      Tag = "unknown-attribute"
	TagMissingElement        Tag = "missing-element"
	TagBadElement            Tag = "bad-element"
	TagUnknownElement        Tag = "unknown-element"
	TagUnknownNamespace      Tag = "unknown-namespace"
	TagAccessDenied          Tag = "access-denied"
	TagLockDenied            Tag = "lock-denied"
	TagResourceDenied        Tag = "resource-denied"
	TagRollbackFailed        Tag = "rollback-failed"
	TagDataExists            Tag = "data-exists"
	TagDataMissing           Tag = "data-missing"
	TagOperationNotSupported Tag = "operation-not-supported"
	TagOperationFailed       Tag = "operation-failed"
	TagPartialOperation      Tag = "partial-operation"
	TagMalformedMessage      Tag = "malformed-message"
)

// Error is a structured error record. It implements the error interface so
// it can be returned and wrapped like any other Go error, but callers that
// care about the NETCONF/RESTCONF wire representation type-assert to *Error.
type Error struct {
	Type     ErrorType
	Tag      Tag
	Severity Severity
	Path     string
	Message  string
	Info     map[string]string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Tag, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

func newErr(typ ErrorType, tag Tag, msg string) *Error {
	return &Error{Type: typ, Tag: tag, Severity: SeverityError, Message: msg}
}

func NewInvalidValueError(msg string) *Error {
	return newErr(TypeApplication, TagInvalidValue, msg)
}

func NewMissingElementError(path string) *Error {
	e := newErr(TypeApplication, TagMissingElement, "element does not exist")
	e.Path = path
	return e
}

func NewBadElementError(path string) *Error {
	e := newErr(TypeApplication, TagBadElement, "element is invalid")
	e.Path = path
	return e
}

func NewDataExistsError(path string) *Error {
	e := newErr(TypeApplication, TagDataExists, "data already exists")
	e.Path = path
	return e
}

func NewDataMissingError(path string) *Error {
	e := newErr(TypeApplication, TagDataMissing, "data does not exist")
	e.Path = path
	return e
}

func NewInUseError(msg string) *Error {
	return newErr(TypeProtocol, TagInUse, msg)
}

func NewLockDeniedError(holder string) *Error {
	e := newErr(TypeProtocol, TagLockDenied, "lock is held")
	e.Info = map[string]string{"session-id": holder}
	return e
}

func NewAccessDeniedError(msg string) *Error {
	return newErr(TypeProtocol, TagAccessDenied, msg)
}

func NewOperationFailedApplicationError(msg string) *Error {
	if msg == "" {
		msg = "operation failed"
	}
	return newErr(TypeApplication, TagOperationFailed, msg)
}

// NewInternalError reports an unexpected internal condition without leaking
// implementation identifiers.
func NewInternalError() *Error {
	return newErr(TypeApplication, TagOperationFailed, "internal error")
}

func NewOperationNotSupportedError(msg string) *Error {
	return newErr(TypeProtocol, TagOperationNotSupported, msg)
}

func NewMalformedMessageError(msg string) *Error {
	return newErr(TypeRPC, TagMalformedMessage, msg)
}

// List is a non-empty collection of error records, as produced by the
// validator and by commit/revert failures.
type List []*Error

func (l List) Error() string {
	if len(l) == 0 {
		return "no error"
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// HTTPStatus implements the error-tag→HTTP-status mapping used by the
// RESTCONF adapter.
func (e *Error) HTTPStatus(authenticated bool) (status int, allow string) {
	switch e.Tag {
	case TagInvalidValue, TagMissingElement, TagBadElement, TagMalformedMessage:
		return 400, ""
	case TagAccessDenied:
		if !authenticated {
			return 401, ""
		}
		return 403, ""
	case TagLockDenied, TagResourceDenied, TagDataExists, TagDataMissing, TagInUse:
		return 409, ""
	case TagOperationNotSupported:
		return 405, "GET, POST, PUT, PATCH, DELETE"
	case TagPartialOperation, TagOperationFailed, TagRollbackFailed:
		return 500, ""
	default:
		return 500, ""
	}
}
