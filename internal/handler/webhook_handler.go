package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/controller"
	"github.com/unclebandit/koya-caller/internal/queue"
	"github.com/unclebandit/koya-caller/internal/voice"
)

const maxWebhookBody = 1 << 20

// WebhookHandler accepts voice provider callbacks. call_ended events are
// published to the outcome subscriber, or recorded before replying when
// Recorder is set, so a failure is answered with 500 and redelivered.
type WebhookHandler struct {
	// Secret enables signature checks when set.
	Secret   string
	Queue    queue.Queue
	Recorder queue.OutcomeRecorder
	Log      *zap.Logger
}

func (h *WebhookHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *WebhookHandler) HandleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if h.Secret != "" && !voice.VerifySignature(h.Secret, body, r.Header.Get(voice.SignatureHeader)) {
		h.log().Warn("voice webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
		controller.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	event, outcome, err := voice.ParseWebhook(body)
	if err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if outcome == nil {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": event})
		return
	}

	if h.Recorder != nil {
		if err := h.Recorder.RecordOutcome(r.Context(), *outcome); err != nil {
			h.log().Error("record call outcome",
				zap.String("provider_call_id", outcome.ProviderCallID), zap.Error(err))
			controller.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not record event"})
			return
		}
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
		return
	}

	if err := h.Queue.Publish(queue.TopicCallOutcomes, outcome); err != nil {
		h.log().Error("publish call outcome",
			zap.String("provider_call_id", outcome.ProviderCallID), zap.Error(err))
		controller.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not accept event"})
		return
	}

	h.log().Info("call outcome accepted",
		zap.String("provider_call_id", outcome.ProviderCallID),
		zap.String("tenant_id", outcome.TenantID),
		zap.String("disconnect_reason", outcome.DisconnectReason),
	)
	controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
