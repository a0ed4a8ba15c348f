package predictor

import (
	"context"
	"fmt"
	"strings"

	"selfheal/internal/embedding"
	"selfheal/internal/logging"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI MODEL
// =============================================================================

// GenAIModel asks a Gemini model for a replacement selector. It decodes the
// input tensor with the shared codec, so it plugs into the same call-scoped
// tensor flow as the local model.
type GenAIModel struct {
	client *genai.Client
	model  string
	codec  embedding.Codec
}

func newGenAIModel(ctx context.Context, cfg Config, codec embedding.Codec) (Model, error) {
	if cfg.GenAIAPIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required (set GEMINI_API_KEY)")
	}
	model := cfg.GenAIModel
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GenAIAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logging.Predictor("GenAI model ready: %s", model)
	return &GenAIModel{client: client, model: model, codec: codec}, nil
}

func (m *GenAIModel) Name() string {
	return fmt.Sprintf("genai:%s", m.model)
}

func (m *GenAIModel) Infer(ctx context.Context, in, out *Tensor) error {
	failed := m.codec.Decode(in.Data())
	prompt := fmt.Sprintf(`A UI test could not find an element with the locator %q.
Suggest the single most likely replacement locator (CSS selector, or XPath starting with //).
Reply with the locator only, no explanation.`, failed)

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), nil)
	if err != nil {
		return fmt.Errorf("GenAI generate failed: %w", err)
	}

	suggestion := cleanSuggestion(resp.Text())
	dst := out.Data()
	if suggestion == "" {
		clear(dst)
		return nil
	}
	if err := m.codec.Encode(suggestion, dst); err != nil {
		return fmt.Errorf("encode GenAI suggestion: %w", err)
	}
	return nil
}

// cleanSuggestion strips markdown fences and quoting around a model reply.
func cleanSuggestion(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```css")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if line, _, found := strings.Cut(s, "\n"); found {
		s = strings.TrimSpace(line)
	}
	s = strings.Trim(s, "`")
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = s[1 : len(s)-1]
	}
	return s
}

func (m *GenAIModel) Close() error {
	return nil
}
