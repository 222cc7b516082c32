package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNumberNotRegistered is returned when the provider does not know a line.
var ErrNumberNotRegistered = errors.New("phone number not registered with voice provider")

type CreateCallRequest struct {
	AgentID          string
	FromNumber       string
	ToNumber         string
	DynamicVariables map[string]string
	Metadata         map[string]string
}

type CreateCallResponse struct {
	CallID     string
	CallStatus string
}

type PhoneNumber struct {
	Number          string
	OutboundAgentID string
}

// Client is the narrow call-creation contract with the voice provider.
type Client interface {
	CreatePhoneCall(ctx context.Context, req CreateCallRequest) (*CreateCallResponse, error)
	GetPhoneNumber(ctx context.Context, number string) (*PhoneNumber, error)
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New picks a client implementation by name.
func New(kind string, opts Options, log *zap.Logger) Client {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(kind) {
	case "", "stub", "log":
		return logClient{log: log}
	case "fail":
		return failClient{}
	case "http", "retell":
		if opts.APIKey == "" {
			log.Warn("voice api key missing, falling back to log client")
			return logClient{log: log}
		}
		return NewHTTPClient(opts)
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			opts.BaseURL = kind
			return NewHTTPClient(opts)
		}
		return logClient{log: log}
	}
}

// logClient pretends every call was placed. Used for local runs.
type logClient struct {
	log *zap.Logger
}

func (c logClient) CreatePhoneCall(ctx context.Context, req CreateCallRequest) (*CreateCallResponse, error) {
	id := "log_" + uuid.NewString()
	c.log.Info("voice call (log client)",
		zap.String("provider_call_id", id),
		zap.String("agent_id", req.AgentID),
		zap.String("from", req.FromNumber),
		zap.String("to", req.ToNumber),
		zap.Int("variables", len(req.DynamicVariables)),
	)
	return &CreateCallResponse{CallID: id, CallStatus: "registered"}, nil
}

func (c logClient) GetPhoneNumber(ctx context.Context, number string) (*PhoneNumber, error) {
	return &PhoneNumber{Number: number}, nil
}

type failClient struct{}

func (failClient) CreatePhoneCall(ctx context.Context, req CreateCallRequest) (*CreateCallResponse, error) {
	return nil, fmt.Errorf("voice provider failure")
}

func (failClient) GetPhoneNumber(ctx context.Context, number string) (*PhoneNumber, error) {
	return &PhoneNumber{Number: number}, nil
}
