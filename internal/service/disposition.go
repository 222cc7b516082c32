package service

import (
	"strings"

	"github.com/unclebandit/koya-caller/internal/model"
)

// Outbound outcome labels stored on the queue entry.
const (
	OutcomeCompleted     = "completed"
	OutcomeBooked        = "booked"
	OutcomeTransferred   = "transferred"
	OutcomeMessage       = "message"
	OutcomeInfo          = "info"
	OutcomeMissed        = "missed"
	OutcomeNoAnswer      = "no_answer"
	OutcomeVoicemail     = "voicemail"
	OutcomeBusy          = "busy"
	OutcomeRejected      = "rejected"
	OutcomeInvalidNumber = "invalid_number"
	OutcomeError         = "error"
)

var disconnectStatus = map[string]model.QueueStatus{
	"user_hangup":          model.QueueStatusCompleted,
	"agent_hangup":         model.QueueStatusCompleted,
	"call_transfer":        model.QueueStatusCompleted,
	"max_duration_reached": model.QueueStatusCompleted,
	"inactivity":           model.QueueStatusCompleted,

	"dial_no_answer":    model.QueueStatusNoAnswer,
	"no_answer":         model.QueueStatusNoAnswer,
	"voicemail_reached": model.QueueStatusNoAnswer,
	"machine_detected":  model.QueueStatusNoAnswer,

	"user_declined":  model.QueueStatusDeclined,
	"call_rejected":  model.QueueStatusDeclined,
	"marked_as_spam": model.QueueStatusDeclined,

	"dial_busy":                            model.QueueStatusFailed,
	"dial_failed":                          model.QueueStatusFailed,
	"invalid_destination":                  model.QueueStatusFailed,
	"registered_call_timeout":              model.QueueStatusFailed,
	"concurrency_limit_reached":            model.QueueStatusFailed,
	"telephony_provider_permission_denied": model.QueueStatusFailed,
}

// MapDisconnectionToStatus derives the final queue status of a call.
func MapDisconnectionToStatus(reason string, durationSeconds int) model.QueueStatus {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		if durationSeconds > 0 {
			return model.QueueStatusCompleted
		}
		return model.QueueStatusFailed
	}
	if s, ok := disconnectStatus[reason]; ok {
		return s
	}
	if strings.HasPrefix(reason, "error") {
		return model.QueueStatusFailed
	}
	// unknown code: only a real conversation counts as completed
	if durationSeconds > 10 {
		return model.QueueStatusCompleted
	}
	return model.QueueStatusFailed
}

var disconnectOutcome = map[string]string{
	"dial_no_answer":      OutcomeNoAnswer,
	"no_answer":           OutcomeNoAnswer,
	"voicemail_reached":   OutcomeVoicemail,
	"machine_detected":    OutcomeVoicemail,
	"dial_busy":           OutcomeBusy,
	"user_declined":       OutcomeRejected,
	"call_rejected":       OutcomeRejected,
	"marked_as_spam":      OutcomeRejected,
	"invalid_destination": OutcomeInvalidNumber,
	"dial_failed":         OutcomeError,
}

var businessOutcomes = map[string]string{
	"booked":        OutcomeBooked,
	"appointment":   OutcomeBooked,
	"transferred":   OutcomeTransferred,
	"transfer":      OutcomeTransferred,
	"message":       OutcomeMessage,
	"message_taken": OutcomeMessage,
	"info":          OutcomeInfo,
	"info_provided": OutcomeInfo,
	"missed":        OutcomeMissed,
}

// MapOutcomeToOutboundOutcome picks the outcome label. Specific
// disconnection reasons win over the conversation layer's outcome.
func MapOutcomeToOutboundOutcome(outcome, reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if label, ok := disconnectOutcome[reason]; ok {
		return label
	}
	if strings.HasPrefix(reason, "error") {
		return OutcomeError
	}
	if label, ok := businessOutcomes[strings.ToLower(strings.TrimSpace(outcome))]; ok {
		return label
	}
	if reason == "call_transfer" {
		return OutcomeTransferred
	}
	return OutcomeCompleted
}
