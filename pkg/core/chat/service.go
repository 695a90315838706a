// Package chat implements the text-completion flow: prompt plus bounded
// recent history in, a completion or a user-facing advisory out.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/kornella/anywaa/pkg/core/types"
)

const (
	// DefaultModel is the text-completion model.
	DefaultModel = "gemini-3-flash-preview"

	// historyWindow bounds how many prior turns accompany each request.
	historyWindow = 10

	maxOutputTokens = 2048
	topP            = 0.9
)

const systemInstruction = `
You are "Anywaa AI", an advanced cultural intelligence system specializing in Anywaa (#anyuak) heritage and the Gambella region.
Created by Kornella Otf, a visionary developer dedicated to cultural preservation.

RESPONSE ARCHITECTURE (STRICT ADHERENCE REQUIRED):

1. FOR GENERAL INQUIRIES (Non-heritage specific topics, general knowledge, greetings):
   - Provide one clear, direct main statement answering the question.
   - Follow immediately with a bulleted list titled "RELATED ARCHIVES" containing 3-4 keywords or short phrases for further exploration.
   - DO NOT provide long paragraphs or unnecessary explanations for general queries.

2. FOR ANYWAA HERITAGE & GAMBELLA INQUIRIES:
   - Provide deep, scholarly, and comprehensive explanations.
   - Detail the Nyeya kingship, Opedu traditional law, migration history, and cultural nuances.
   - Use professional, structured formatting (bolding, clear paragraphs) to aid readability.

CORE GUIDELINES:
- GREETING: When a user says hello or initiates a chat, your response must be exactly: "Hello. How can I assist you today?"
- NO DISCLAIMERS: Avoid saying "As an AI..." or "I am programmed to...".
- IMAGE ANALYSIS: Identify cultural artifacts or regional geographical features with high precision.
- TONE: Professional, respectful, and authoritative.
`

// User-facing advisory strings for recovered failures.
const (
	AdvisoryRateLimited = "The neural pathways are currently congested. Please pause for a moment before resending your inquiry."
	AdvisoryGeneric     = "The neural link encountered a disruption. Please refresh your session or rephrase your request."
	AdvisoryEmpty       = "I processed your request but the neural archive returned a null state. Please rephrase your inquiry."
)

// ErrorType categorizes completion failures.
type ErrorType string

const (
	ErrRateLimit ErrorType = "rate_limit_error"
	ErrAPI       ErrorType = "api_error"
)

// Error is a typed completion failure.
type Error struct {
	Type    ErrorType
	Message string
	wrapped error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat: %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Advisory maps a completion failure to the string shown to the user.
// Rate limits are recovered locally rather than surfaced as hard failures.
func Advisory(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Type == ErrRateLimit {
		return AdvisoryRateLimited
	}
	return AdvisoryGeneric
}

// Request is one completion request.
type Request struct {
	Prompt string

	// ImagePNG is an optional raw PNG attachment.
	ImagePNG []byte

	// History is the full conversation; only the most recent turns are
	// sent upstream.
	History []types.Message

	Temperature float64
}

// Service talks to the hosted generative-language API.
type Service struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// NewService creates a completion service with the given API key.
func NewService(ctx context.Context, apiKey string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Service{
		client: client,
		model:  DefaultModel,
		log:    log.With("component", "chat"),
	}, nil
}

// GenerateResponse produces a completion for the prompt in the context of
// the most recent history turns. Failures come back as *Error; callers
// render them with Advisory. An empty completion yields AdvisoryEmpty with
// no error.
func (s *Service) GenerateResponse(ctx context.Context, req Request) (string, error) {
	contents := buildContents(req)

	temp := float32(req.Temperature)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Temperature:     genai.Ptr(temp),
		TopP:            genai.Ptr(float32(topP)),
		MaxOutputTokens: maxOutputTokens,
		Tools:           []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		s.log.Error("completion request failed", "model", s.model, "error", err)
		return "", classify(err)
	}

	text := resp.Text()
	if text == "" {
		return AdvisoryEmpty, nil
	}
	return text, nil
}

// buildContents assembles the windowed history followed by the new user
// turn with its optional image part.
func buildContents(req Request) []*genai.Content {
	history := Window(req.History, historyWindow)

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.RoleUser
		if msg.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Text}},
		})
	}

	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.ImagePNG) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: req.ImagePNG},
		})
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
	return contents
}

// classify maps an upstream error into the local taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return &Error{Type: ErrRateLimit, Message: apiErr.Message, wrapped: err}
		}
		return &Error{Type: ErrAPI, Message: apiErr.Message, wrapped: err}
	}
	return &Error{Type: ErrAPI, Message: err.Error(), wrapped: err}
}
