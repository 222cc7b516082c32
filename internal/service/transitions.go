package service

import "github.com/unclebandit/koya-caller/internal/model"

// Queue actions and the statuses each may start from. The repository's
// conditional updates enforce the same table in SQL.
const (
	ActionPromote    = "promote"
	ActionClaim      = "claim"
	ActionInitiated  = "initiated"
	ActionFail       = "fail_attempt"
	ActionOutcome    = "record_outcome"
	ActionCancel     = "cancel"
	ActionReschedule = "reschedule"
	ActionRecover    = "recover_stale"
)

var transitionMap = map[string][]model.QueueStatus{
	ActionPromote:    {model.QueueStatusScheduled},
	ActionClaim:      {model.QueueStatusPending},
	ActionInitiated:  {model.QueueStatusCalling},
	ActionFail:       {model.QueueStatusCalling},
	ActionOutcome:    {model.QueueStatusCalling, model.QueueStatusCompleted},
	ActionCancel:     {model.QueueStatusPending, model.QueueStatusScheduled},
	ActionReschedule: {model.QueueStatusPending, model.QueueStatusScheduled},
	ActionRecover:    {model.QueueStatusCalling},
}

func ValidTransition(action string, from model.QueueStatus) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// NextState is where an entry goes after a failed initiation. attempt is
// the attempt number that just failed (1-based).
func NextState(attempt, maxAttempts int, reason model.FailureReason) model.QueueStatus {
	switch reason {
	case model.ReasonDNC:
		return model.QueueStatusDNCBlocked
	case model.ReasonInvalidNumber, model.ReasonNoAgent, model.ReasonConsentRequired:
		return model.QueueStatusFailed
	}
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}
	if attempt < maxAttempts {
		return model.QueueStatusPending
	}
	return model.QueueStatusFailed
}
