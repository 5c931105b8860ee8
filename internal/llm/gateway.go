// Package llm provides the single round-trip gateway to the remote model
// and the bounded retry policy layered on top of it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	awshttp "github.com/aws/smithy-go/transport/http"
)

const (
	// DefaultModelID is the default Bedrock model for question answering.
	DefaultModelID = "anthropic.claude-haiku-4-5-20251001-v1:0"
	// DefaultMaxTokens bounds completion length.
	DefaultMaxTokens = 1024
	// DefaultTimeout bounds one model round trip.
	DefaultTimeout = 90 * time.Second
	// anthropicVersion is the required API version for Claude on Bedrock.
	anthropicVersion = "bedrock-2023-05-31"
)

// Message is one role-tagged message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gateway performs one model round trip. It never retries; see Retrier.
type Gateway interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// ErrNoCredentials indicates no model credential is configured. Callers
// degrade to a clearly labeled static answer instead of failing the request.
var ErrNoCredentials = errors.New("no model credentials configured")

// RateLimitError indicates the upstream throttled the request.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("rate limited: %v", e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// UpstreamError is any other failed model call, carrying whatever status and
// body text the transport exposed.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// BedrockInvoker abstracts Bedrock model invocation for dependency inversion.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds gateway configuration.
type Config struct {
	ModelID   string
	MaxTokens int
	Timeout   time.Duration
}

// BedrockGateway talks to the Claude Messages API on Amazon Bedrock.
type BedrockGateway struct {
	client    BedrockInvoker
	modelID   string
	maxTokens int
	timeout   time.Duration
	credsErr  error
}

// NewBedrockGateway creates a gateway over an existing invoker. credsErr,
// when non-nil, marks the gateway as unauthenticated: every Complete call
// returns ErrNoCredentials without touching the network.
func NewBedrockGateway(client BedrockInvoker, cfg Config, credsErr error) *BedrockGateway {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BedrockGateway{
		client:    client,
		modelID:   modelID,
		maxTokens: maxTokens,
		timeout:   timeout,
		credsErr:  credsErr,
	}
}

// New resolves AWS configuration and returns a ready gateway. A failed
// credential resolution is not fatal: the gateway is returned in
// unauthenticated mode and reports ErrNoCredentials per call.
func New(ctx context.Context, region string, cfg Config) (*BedrockGateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var credsErr error
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		credsErr = err
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return NewBedrockGateway(client, cfg, credsErr), nil
}

// claudeRequest is the Claude Messages API request format for Bedrock.
type claudeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
}

// claudeResponse is the Claude Messages API response format.
type claudeResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends the messages and returns the first completion text.
func (g *BedrockGateway) Complete(ctx context.Context, msgs []Message) (string, error) {
	if g.credsErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredentials, g.credsErr)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reqBody, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        g.maxTokens,
		Messages:         msgs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	modelID := g.modelID
	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: &modelID,
		Body:    reqBody,
	})
	if err != nil {
		return "", classify(err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", &UpstreamError{Body: string(output.Body), Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(resp.Content) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

// throttleCodes are the API error codes treated as rate-limit signals.
var throttleCodes = map[string]bool{
	"ThrottlingException":           true,
	"TooManyRequestsException":      true,
	"ServiceQuotaExceededException": true,
}

// classify maps an SDK error into the gateway error taxonomy.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
		return &RateLimitError{Err: err}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == 429 {
			return &RateLimitError{Err: err}
		}
		return &UpstreamError{Status: status, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Err: fmt.Errorf("model call timed out: %w", err)}
	}
	return &UpstreamError{Err: err}
}
