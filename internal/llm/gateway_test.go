package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// fakeInvoker returns canned responses or errors.
type fakeInvoker struct {
	response string
	err      error
	lastBody []byte
	calls    int
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	f.lastBody = params.Body
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(claudeResponse{Content: []contentBlock{{Type: "text", Text: f.response}}})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestComplete_ReturnsFirstChoiceText(t *testing.T) {
	inv := &fakeInvoker{response: "  the answer  "}
	gw := NewBedrockGateway(inv, Config{}, nil)

	got, err := gw.Complete(context.Background(), []Message{{Role: "user", Content: "q"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestComplete_SendsMessagesAPIFormat(t *testing.T) {
	inv := &fakeInvoker{response: "ok"}
	gw := NewBedrockGateway(inv, Config{MaxTokens: 42}, nil)

	_, err := gw.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var req claudeRequest
	if err := json.Unmarshal(inv.lastBody, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.AnthropicVersion != anthropicVersion || req.MaxTokens != 42 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestComplete_NoCredentials(t *testing.T) {
	gw := NewBedrockGateway(&fakeInvoker{}, Config{}, errors.New("no providers"))

	_, err := gw.Complete(context.Background(), nil)
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestComplete_ClassifiesThrottling(t *testing.T) {
	inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}
	gw := NewBedrockGateway(inv, Config{}, nil)

	_, err := gw.Complete(context.Background(), nil)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("expected RateLimitError, got %v", err)
	}
}

func TestComplete_ClassifiesOtherAPIErrorsAsUpstream(t *testing.T) {
	inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ValidationException", Message: "bad input"}}
	gw := NewBedrockGateway(inv, Config{}, nil)

	_, err := gw.Complete(context.Background(), nil)
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Errorf("expected UpstreamError, got %v", err)
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		t.Error("validation error must not look like throttling")
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	inv := &fakeInvoker{}
	gw := NewBedrockGateway(inv, Config{}, nil)

	got, err := gw.Complete(context.Background(), nil)
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}
