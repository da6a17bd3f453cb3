package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

const noText = "No response text received from Gemini."

// Gemini is the Oracle backed by the Gemini API. Every call first passes
// through the rate limiter.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *RateLimiter
	logger  *zap.Logger
}

// GeminiConfig configures NewGemini. BaseURL is only set by tests.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

func NewGemini(ctx context.Context, cfg GeminiConfig, limiter *RateLimiter, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (g *Gemini) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.MimeType))
	}

	g.logger.Debug("Describing screen",
		zap.String("screen", req.Screen),
		zap.Int("step", req.Step),
		zap.Int("image_bytes", len(req.Image)))

	return g.generate(ctx, genai.NewContentFromParts(parts, genai.RoleUser))
}

func (g *Gemini) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	return g.generate(ctx, genai.NewContentFromText(SummaryPrompt(req), genai.RoleUser))
}

func (g *Gemini) generate(ctx context.Context, content *genai.Content) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return noText, nil
	}
	return text, nil
}
