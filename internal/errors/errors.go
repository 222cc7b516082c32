// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrEntryInFlight is returned when a queue entry is already claimed for dialing.
	ErrEntryInFlight = errors.New("queue entry is in flight")
	// ErrInvalidState is returned for a transition the current status does not allow.
	ErrInvalidState = errors.New("invalid state transition")
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidSettings is returned when outbound settings fail validation.
	ErrInvalidSettings = errors.New("invalid outbound settings")
	// ErrLockHeld is returned when a tenant job is already running elsewhere.
	ErrLockHeld = errors.New("tenant job already running")
)

// ErrNotFound is a typed not-found error for any stored resource.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func NewCampaignNotFound(id string) error {
	return &ErrNotFound{Resource: "campaign", ID: id}
}

func NewQueueEntryNotFound(id string) error {
	return &ErrNotFound{Resource: "queue entry", ID: id}
}

func NewDNCEntryNotFound(phone string) error {
	return &ErrNotFound{Resource: "dnc entry", ID: phone}
}

func NewTenantNotFound(id string) error {
	return &ErrNotFound{Resource: "tenant", ID: id}
}

func NewContactNotFound(id string) error {
	return &ErrNotFound{Resource: "contact", ID: id}
}

// IsNotFound reports whether err wraps an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ValidationError carries a user-facing message for a rejected request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
