package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient talks to a Retell-compatible REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type createCallBody struct {
	FromNumber       string            `json:"from_number"`
	ToNumber         string            `json:"to_number"`
	OverrideAgentID  string            `json:"override_agent_id,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type createCallReply struct {
	CallID     string `json:"call_id"`
	CallStatus string `json:"call_status"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *HTTPClient) CreatePhoneCall(ctx context.Context, req CreateCallRequest) (*CreateCallResponse, error) {
	body, err := json.Marshal(createCallBody{
		FromNumber:       req.FromNumber,
		ToNumber:         req.ToNumber,
		OverrideAgentID:  req.AgentID,
		DynamicVariables: req.DynamicVariables,
		Metadata:         req.Metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode create call")
	}

	var reply createCallReply
	if err := c.do(ctx, http.MethodPost, "/v2/create-phone-call", body, &reply); err != nil {
		return nil, err
	}
	if reply.CallID == "" {
		return nil, errors.New("voice provider returned no call id")
	}
	return &CreateCallResponse{CallID: reply.CallID, CallStatus: reply.CallStatus}, nil
}

type phoneNumberReply struct {
	PhoneNumber     string `json:"phone_number"`
	OutboundAgentID string `json:"outbound_agent_id"`
}

func (c *HTTPClient) GetPhoneNumber(ctx context.Context, number string) (*PhoneNumber, error) {
	var reply phoneNumberReply
	if err := c.do(ctx, http.MethodGet, "/get-phone-number/"+url.PathEscape(number), nil, &reply); err != nil {
		return nil, err
	}
	return &PhoneNumber{Number: reply.PhoneNumber, OutboundAgentID: reply.OutboundAgentID}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build voice request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read voice response")
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrNumberNotRegistered
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("voice provider %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode voice response")
}
