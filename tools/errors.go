package tools

import (
	"errors"
	"fmt"
)

// ErrNoValidKeys represents an error returned when the token does not have the configured keys
var ErrNoValidKeys = errors.New("no valid keys")

// ConfigurationError is returned when a provider, curve or mechanism identifier
// cannot be resolved. It is never recovered from by defaulting.
type ConfigurationError struct {
	Kind  string // provider, curve, mechanism, ...
	Value string // offending value
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Kind, e.Value)
}

// KeyLoadError is returned when a key resource is unreadable or malformed.
type KeyLoadError struct {
	Resource string
	Err      error
}

func (e *KeyLoadError) Error() string {
	return fmt.Sprintf("unable to load key %s: %s", e.Resource, e.Err)
}

func (e *KeyLoadError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when an HSM reply does not have the shape expected
// for the command that was sent.
type ProtocolError struct {
	Cmd    uint32 // request opcode
	Status uint32 // reply status, zero when the failure is structural
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Status != StatusOK {
		return fmt.Sprintf("hsm protocol error on cmd %d: %s (status 0x%x)", e.Cmd, e.Reason, e.Status)
	}
	return fmt.Sprintf("hsm protocol error on cmd %d: %s", e.Cmd, e.Reason)
}

// TransportError wraps a failure of the HSM transport itself. Commands are never
// retried.
type TransportError struct {
	Cmd uint32
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hsm transport failed on cmd %d: %s", e.Cmd, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
