package service

import (
	"errors"

	"github.com/noah-isme/bounty-chat/internal/middleware"
)

// ErrorKind groups chat errors by how they are surfaced.
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindInternal   ErrorKind = "internal"
)

// ChatError is a client-facing chat failure. Message is safe to send to the caller.
type ChatError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *ChatError) Error() string {
	return e.Message
}

// Chat error sentinels. Compare with errors.Is.
var (
	ErrMissingCredential = &ChatError{Kind: ErrorKindAuth, Code: "MissingCredential", Message: "authentication required"}
	ErrInvalidCredential = &ChatError{Kind: ErrorKindAuth, Code: "InvalidCredential", Message: "invalid session"}
	ErrNoManagedCompany  = &ChatError{Kind: ErrorKindAuth, Code: "NoManagedCompany", Message: "no company is managed by this account"}
	ErrReportNotOwned    = &ChatError{Kind: ErrorKindAuth, Code: "ReportNotOwned", Message: "report does not belong to your company"}
	ErrForbidden         = &ChatError{Kind: ErrorKindAuth, Code: "Forbidden", Message: "you are not allowed to access this chat"}

	ErrReportNotFound = &ChatError{Kind: ErrorKindNotFound, Code: "ReportNotFound", Message: "report not found"}
	ErrChatNotFound   = &ChatError{Kind: ErrorKindNotFound, Code: "ChatNotFound", Message: "chat not found"}

	ErrEmptyContent   = &ChatError{Kind: ErrorKindValidation, Code: "EmptyContent", Message: "message content must not be empty"}
	ErrMissingChatID  = &ChatError{Kind: ErrorKindValidation, Code: "MissingChatId", Message: "chat_id is required"}
	ErrMissingRoomID  = &ChatError{Kind: ErrorKindValidation, Code: "MissingRoomId", Message: "room_id or chat_id is required"}
	ErrInvalidPayload = &ChatError{Kind: ErrorKindValidation, Code: "InvalidPayload", Message: "invalid event payload"}
	ErrUnknownEvent   = &ChatError{Kind: ErrorKindValidation, Code: "UnknownEvent", Message: "unknown event"}

	errInternal = &ChatError{Kind: ErrorKindInternal, Code: "Internal", Message: "something went wrong, please try again"}
)

// ClassifyError maps any error onto the chat taxonomy. Unknown causes become a generic internal error.
func ClassifyError(err error) *ChatError {
	if err == nil {
		return nil
	}

	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr
	}

	switch {
	case errors.Is(err, middleware.ErrMissingCredential):
		return ErrMissingCredential
	case errors.Is(err, middleware.ErrInvalidCredential):
		return ErrInvalidCredential
	default:
		return errInternal
	}
}
