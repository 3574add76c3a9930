package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"appointa/config"
	"appointa/models"
)

// GeminiExtractor implements Extractor against the Gemini API.
type GeminiExtractor struct {
	model *genai.GenerativeModel
}

// NewGeminiExtractor builds the client from the configured API key.
func NewGeminiExtractor(ctx context.Context) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	modelName := config.AppConfig.GeminiModel
	if modelName == "" {
		modelName = "models/gemini-1.5-pro"
	}
	return &GeminiExtractor{model: client.GenerativeModel(modelName)}, nil
}

const extractionPrompt = `You extract appointment booking details from a conversation between a client and a consultant's assistant.
Return ONLY a JSON object with these keys (null when not mentioned):
{"isConfirming": bool, "date": "YYYY-MM-DD", "time": "HH:MM", "phone": string, "email": string, "name": string, "confidence": "high"|"medium"|"low"}
"isConfirming" is true only when the client explicitly agrees to a previously proposed slot.
Known so far: %s
Conversation:
%s`

// Extract runs one extraction call over the transcript. The known-so-far
// context keeps the model from re-asking for fields it already produced.
func (g *GeminiExtractor) Extract(ctx context.Context, turns []models.ConversationMessage, draft *models.BookingDraft) (*models.ExtractionResult, error) {
	var transcript strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Sender, t.Text)
	}

	known := "nothing"
	if draft != nil {
		if b, err := json.Marshal(draft); err == nil {
			known = string(b)
		}
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(extractionPrompt, known, transcript.String())))
	if err != nil {
		return nil, fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(stripJSONFences(sb.String())), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return &result, nil
}

// stripJSONFences removes the markdown code fences Gemini wraps JSON in.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
