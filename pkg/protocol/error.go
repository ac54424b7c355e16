package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// MayHaveSucceeded returns true if the Error was triggered by an operation that might have
	// been executed. For example, if a client times out while waiting for the cloud service to
	// acknowledge a command, then the client cannot tell if the command was received.
	MayHaveSucceeded() bool

	// Temporary returns true if the Error might be the result of a transient condition. Clients
	// should treat a temporary reconciliation failure as "status unknown, try again" rather than
	// marking the command FAILED.
	Temporary() bool
}

// InvalidCommandError indicates a command name outside the recognized vocabulary. It is returned
// before any network traffic is generated.
type InvalidCommandError struct {
	Name string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command: %s", e.Name)
}

func (e *InvalidCommandError) MayHaveSucceeded() bool { return false }
func (e *InvalidCommandError) Temporary() bool        { return false }

// MissingCredentialsError indicates one of the command-signing parameters required by the cloud
// service was absent from a request.
type MissingCredentialsError struct {
	Field string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing required credential: %s", e.Field)
}

func (e *MissingCredentialsError) MayHaveSucceeded() bool { return false }
func (e *MissingCredentialsError) Temporary() bool        { return false }

// VehicleNotFoundError indicates a vehicle ID that does not belong to the authenticated account.
type VehicleNotFoundError struct {
	VehicleID string
}

func (e *VehicleNotFoundError) Error() string {
	return fmt.Sprintf("vehicle not found: %s", e.VehicleID)
}

func (e *VehicleNotFoundError) MayHaveSucceeded() bool { return false }
func (e *VehicleNotFoundError) Temporary() bool        { return false }

// CommandNotFoundError indicates a command ID unknown to both the local cache and the cloud
// service.
type CommandNotFoundError struct {
	CommandID string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s", e.CommandID)
}

func (e *CommandNotFoundError) MayHaveSucceeded() bool { return false }
func (e *CommandNotFoundError) Temporary() bool        { return false }

// UpstreamError wraps a failure reported by (or while reaching) the cloud service. The upstream
// message is preserved verbatim.
type UpstreamError struct {
	Err               error
	PossibleSuccess   bool
	PossibleTemporary bool
}

// NewUpstreamError builds an UpstreamError from a bare message.
func NewUpstreamError(message string, mayHaveSucceeded bool, temporary bool) error {
	return &UpstreamError{Err: errors.New(message), PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *UpstreamError) Temporary() bool {
	return e.PossibleTemporary
}

// ErrTimeout indicates an upstream call exceeded its deadline. A timed-out send may have been
// received by the cloud service, so the error is categorized as possibly succeeded; a timed-out
// status query is always safe to retry.
var ErrTimeout = &UpstreamError{Err: errors.New("upstream request timed out"), PossibleSuccess: true, PossibleTemporary: true}

// MayHaveSucceeded returns true if err indicates an operation that may have been executed even
// though the client did not receive a confirmation.
func MayHaveSucceeded(err error) bool {
	if commErr, ok := err.(Error); ok && commErr.MayHaveSucceeded() {
		return true
	}
	return false
}

// Temporary returns true if err indicates a failure due to possibly transient conditions that do
// not require user action to resolve.
func Temporary(err error) bool {
	if commErr, ok := err.(Error); ok && commErr.Temporary() {
		return true
	}
	return false
}

// IsNotFound returns true if err indicates a command ID unknown to the cache and the cloud
// service.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nfErr *CommandNotFoundError
	return errors.As(err, &nfErr)
}

// IsTimeout returns true if err wraps an exceeded upstream deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
