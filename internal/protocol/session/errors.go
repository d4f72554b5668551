package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/hassctl/internal/protocol"
)

var (
	ErrConnectionClosed     = errors.New("session: connection closed")
	ErrSendFailed           = errors.New("session: send failed")
	ErrUntaggedPending      = errors.New("session: untagged request already pending")
	ErrDuplicateID          = errors.New("session: correlation id already pending")
	ErrSubscriptionNotFound = errors.New("session: subscription not found locally")
	ErrNotAuthenticated     = errors.New("session: not authenticated")
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")
	ErrAuthenticationFailed = errors.New("session: authentication failed")
	// ErrAuthInterrupted means the caller stopped waiting after the credential
	// was sent. The dispatcher still settles the auth state from the reply.
	ErrAuthInterrupted = errors.New("session: authentication interrupted after credential was sent")
	ErrOrphanReply          = errors.New("session: reply matches no pending request")
	ErrUnexpectedReply      = errors.New("session: unexpected reply type")
	ErrResponse             = errors.New("session: server rejected command")
)

// ResponseError is a result frame with success=false.
type ResponseError struct {
	ID      uint64
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("session: command %d failed: %s: %s", e.ID, e.Code, e.Message)
}

func (e *ResponseError) Unwrap() error {
	return ErrResponse
}

// AuthError ends the handshake. Message is the server text for auth_invalid
// or a protocol-error description for any other reply.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "session: authentication failed: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return ErrAuthenticationFailed
}

// CheckResult requires r to be a successful result frame.
func CheckResult(r protocol.Reply) error {
	if r.Type != protocol.TypeResult {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, r)
	}
	if !r.Success {
		return responseError(r)
	}
	return nil
}

func responseError(r protocol.Reply) *ResponseError {
	id, _ := r.CorrelationID()
	e := &ResponseError{ID: id}
	if r.Error != nil {
		e.Code = r.Error.Code
		e.Message = r.Error.Message
	}
	return e
}
