// Package llm wraps AWS Bedrock model invocation behind a small interface so
// the enhancer and the legal validator can be tested with fakes.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Message is one conversation turn. An attached image travels as a data URL
// and is converted to the provider's content-block shape on invoke.
type Message struct {
	Role         string
	Text         string
	ImageDataURL string
}

// Request is a single model invocation.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Client invokes a text model and an embedding model.
type Client interface {
	Invoke(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Bedrock is the production Client.
type Bedrock struct {
	client       *bedrockruntime.Client
	modelID      string
	embedModelID string
	maxTokens    int
}

// NewBedrock builds a Bedrock client from config.
func NewBedrock(ctx context.Context, cfg config.BedrockConfig) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("llm: load aws config: %w", err)
	}
	return &Bedrock{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		modelID:      cfg.ModelID,
		embedModelID: cfg.EmbedModelID,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke sends the request to the configured text model and returns the
// concatenated text blocks of the response.
func (b *Bedrock) Invoke(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}
	body := anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           req.System,
		Temperature:      req.Temperature,
	}
	for _, m := range req.Messages {
		am := anthropicMessage{Role: m.Role}
		if m.ImageDataURL != "" {
			mediaType, data, err := SplitDataURL(m.ImageDataURL)
			if err != nil {
				return "", err
			}
			am.Content = append(am.Content, anthropicContent{
				Type:   "image",
				Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: data},
			})
		}
		if m.Text != "" {
			am.Content = append(am.Content, anthropicContent{Type: "text", Text: m.Text})
		}
		body.Messages = append(body.Messages, am)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        raw,
	})
	if err != nil {
		return "", fmt.Errorf("llm: invoke %s: %w", b.modelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("llm: parse response: %w", err)
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	logger.Info("llm invocation",
		"model", b.modelID,
		"input_tokens", fmt.Sprintf("%d", resp.Usage.InputTokens),
		"output_tokens", fmt.Sprintf("%d", resp.Usage.OutputTokens))
	return text.String(), nil
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the dense vector for the text via the Titan embedding model.
func (b *Bedrock) Embed(ctx context.Context, text string) ([]float64, error) {
	raw, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal embed request: %w", err)
	}
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.embedModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        raw,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embed %s: %w", b.embedModelID, err)
	}
	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("llm: parse embedding: %w", err)
	}
	return resp.Embedding, nil
}

// SplitDataURL splits "data:image/png;base64,AAAA" into media type and
// base64 payload.
func SplitDataURL(dataURL string) (mediaType, data string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", fmt.Errorf("llm: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("llm: malformed data URL")
	}
	mediaType, _, _ = strings.Cut(meta, ";")
	if mediaType == "" || !strings.Contains(meta, "base64") {
		return "", "", fmt.Errorf("llm: data URL must be base64 with a media type")
	}
	return mediaType, payload, nil
}

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown fences and prose around it.
func ExtractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("llm: no JSON object in reply")
	}
	return s[start : end+1], nil
}
