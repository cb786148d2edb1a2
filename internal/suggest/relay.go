package suggest

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/sakif/whisper-net/internal/apperror"
)

// DefaultModel is the generation model used when the config names none.
const DefaultModel = "gemini-1.5-flash"

// prompt is sent verbatim for every request. The suggestions are generic on
// purpose — the anonymous sender hasn't told us anything about themselves,
// and we wouldn't want them to.
const prompt = `
    Create a list of three open-ended and engaging questions formatted as a single string.
    Each question should be separated by '||'.
    These questions are for an anonymous social messaging platform, like Qooh.me,
    and should be suitable for a diverse audience.
    Avoid personal or sensitive topics focusing instead on universal themes that encourage friendly interation.
    For example, your output should be structured like this:
    'What's a hobby you've recently started?||If you could have dinner with any historical figure, who would it be?||What's a simple thing that makes you happy?'.
    Ensure the questions are intriguing, foster curiosity, and contribute to a positive and welcoming conversational environment.
    Maximum words in each questions MUST BE 10 words.
    `

// Streamer produces suggestion segments one at a time. emit is called once
// per complete question, in order; if emit returns an error the stream stops
// and that error comes back unchanged.
type Streamer interface {
	Stream(ctx context.Context, emit func(segment string) error) error
}

// Relay streams suggestions from Gemini, re-chunked into whole questions.
type Relay struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewRelay builds the Gemini client. The API key is the only hard
// requirement; model falls back to DefaultModel.
func NewRelay(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Relay, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("suggest: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest: creating gemini client: %w", err)
	}

	return &Relay{client: client, model: model, logger: logger}, nil
}

// Stream runs one generation and forwards each completed question to emit.
//
// An upstream failure before anything was emitted comes back as an
// apperror.ErrUpstream so the caller can answer 502. A failure after the
// first segment just ends the stream early: the segments already emitted
// stay emitted, the caller has no way to retract them.
func (r *Relay) Stream(ctx context.Context, emit func(segment string) error) error {
	var (
		splitter Splitter
		emitted  bool
	)

	for resp, err := range r.client.Models.GenerateContentStream(ctx, r.model, genai.Text(prompt), nil) {
		if err != nil {
			if !emitted {
				return apperror.Upstream("gemini", err)
			}
			r.logger.Warn("suggestion stream truncated mid-flight", "error", err)
			return nil
		}

		for _, segment := range splitter.Feed(resp.Text()) {
			if err := emit(segment); err != nil {
				return err
			}
			emitted = true
		}
	}

	if last, ok := splitter.Flush(); ok {
		return emit(last)
	}
	return nil
}
