package queue

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/model"
)

// OutcomeRecorder is implemented by service.OutcomeRecorder.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, in model.OutcomeEvent) error
}

// StartOutcomeSubscriber feeds call_outcomes messages to recorder. Malformed
// messages are logged and dropped; recorder errors trigger redelivery.
func StartOutcomeSubscriber(q Queue, recorder OutcomeRecorder, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	return q.Subscribe(TopicCallOutcomes, func(body []byte) error {
		var ev model.OutcomeEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			log.Warn("invalid outcome message", zap.Error(err))
			return nil
		}
		if ev.ProviderCallID == "" && ev.QueueEntryID == "" && ev.CallID == "" {
			log.Warn("outcome message without call reference")
			return nil
		}
		if err := recorder.RecordOutcome(context.Background(), ev); err != nil {
			log.Error("record call outcome",
				zap.String("provider_call_id", ev.ProviderCallID), zap.Error(err))
			return err
		}
		return nil
	})
}
