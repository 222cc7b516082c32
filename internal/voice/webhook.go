package voice

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/unclebandit/koya-caller/internal/model"
)

const SignatureHeader = "X-Retell-Signature"

const (
	EventCallStarted  = "call_started"
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

// VerifySignature checks a hex HMAC-SHA256 of the raw body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Sign is the counterpart of VerifySignature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	Event string      `json:"event"`
	Call  webhookCall `json:"call"`
}

type webhookCall struct {
	CallID              string            `json:"call_id"`
	CallStatus          string            `json:"call_status"`
	StartTimestamp      int64             `json:"start_timestamp"`
	EndTimestamp        int64             `json:"end_timestamp"`
	DurationMs          int64             `json:"duration_ms"`
	DisconnectionReason string            `json:"disconnection_reason"`
	Metadata            map[string]string `json:"metadata"`
	CollectedVariables  map[string]any    `json:"collected_dynamic_variables"`
	CallAnalysis        *callAnalysis     `json:"call_analysis"`
}

type callAnalysis struct {
	CustomAnalysisData map[string]any `json:"custom_analysis_data"`
}

// ParseWebhook decodes a provider webhook into an outcome event.
// Events other than call_ended return a nil event.
func ParseWebhook(body []byte) (string, *model.OutcomeEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", nil, errors.Wrap(err, "decode webhook")
	}
	if p.Event == "" {
		return "", nil, errors.New("webhook event missing")
	}
	if p.Event != EventCallEnded {
		return p.Event, nil, nil
	}
	if p.Call.CallID == "" {
		return p.Event, nil, errors.New("webhook call id missing")
	}

	duration := p.Call.DurationMs / 1000
	if duration == 0 && p.Call.EndTimestamp > p.Call.StartTimestamp && p.Call.StartTimestamp > 0 {
		duration = (p.Call.EndTimestamp - p.Call.StartTimestamp) / 1000
	}

	ev := &model.OutcomeEvent{
		ProviderCallID:   p.Call.CallID,
		DurationSeconds:  int(duration),
		DisconnectReason: p.Call.DisconnectionReason,
		Outcome:          businessOutcome(p.Call),
	}
	if md := p.Call.Metadata; md != nil {
		ev.TenantID = md["tenant_id"]
		ev.CallID = md["call_id"]
		ev.QueueEntryID = md["queue_entry_id"]
	}
	return p.Event, ev, nil
}

func businessOutcome(c webhookCall) string {
	if c.CallAnalysis != nil {
		if v, ok := c.CallAnalysis.CustomAnalysisData["outcome"].(string); ok && v != "" {
			return v
		}
	}
	if v, ok := c.CollectedVariables["outcome"].(string); ok {
		return v
	}
	return ""
}
