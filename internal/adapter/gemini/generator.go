package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator answers questions grounded in retrieved document chunks.
type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Answer the question using only the context below. If the context does not contain the answer, say so.\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&prompt, "Context %d:\n%s\n\n", i+1, c)
	}
	fmt.Fprintf(&prompt, "Question: %s", query)

	slog.DebugContext(ctx, "generating answer", "model", g.model, "contexts", len(contexts))

	model := g.client.GenerativeModel(g.model)
	res, err := model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("generation response carried no candidates")
	}

	var answer strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			answer.WriteString(string(text))
		}
	}
	return answer.String(), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
