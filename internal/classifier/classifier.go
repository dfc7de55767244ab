package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/project-radar/backend/internal/models"
)

// IrrelevantSentinel is the literal token the model is instructed to emit for
// listings that are not worth bidding on. Matched case-insensitively after
// trimming.
const IrrelevantSentinel = "IRRELEVANTE"

// ErrNoAnalysis is returned when the model reply is neither the irrelevance
// sentinel nor contains a parseable analysis fragment. The caller should mark
// the listing processed and move on instead of aborting the batch.
var ErrNoAnalysis = errors.New("no analysis fragment in model reply")

// The model replies in free text; the analysis is the first {...} fragment.
var fragmentExpr = regexp.MustCompile(`(?s)\{.*\}`)

// Session is a single-run conversation with Gemini. Every Classify call
// resends the accumulated turn history, so later listings are judged with the
// earlier ones in context. Sessions are not safe for concurrent use and are
// discarded at run end.
type Session struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	history []content
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// NewSession builds a fresh conversation against the Gemini generateContent
// endpoint.
func NewSession(baseURL, model, apiKey string, client *http.Client) *Session {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  client,
	}
}

// Classify asks the model whether a listing is worth bidding on. The
// description must already be plain text. Transport and API failures return a
// plain error; a reply that cannot be interpreted returns ErrNoAnalysis.
func (s *Session) Classify(ctx context.Context, title, description string) (models.Verdict, error) {
	reply, err := s.send(ctx, buildPrompt(title, description))
	if err != nil {
		return models.Verdict{}, err
	}

	return parseVerdict(reply)
}

func (s *Session) send(ctx context.Context, prompt string) (string, error) {
	turns := append(s.history, content{Role: "user", Parts: []part{{Text: prompt}}})

	body, err := json.Marshal(map[string]any{"contents": turns})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", s.baseURL, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var reply strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		reply.WriteString(p.Text)
	}

	// Only successful exchanges extend the conversation.
	s.history = append(turns, content{Role: "model", Parts: []part{{Text: reply.String()}}})

	return reply.String(), nil
}

// Turns reports how many turns the conversation holds so far.
func (s *Session) Turns() int {
	return len(s.history)
}

func buildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("Você é um assistente que avalia projetos freelance de desenvolvimento de software.\n")
	b.WriteString("Projeto: ")
	b.WriteString(title)
	b.WriteString("\nDescrição: ")
	b.WriteString(description)
	b.WriteString("\n\nSe o projeto não for relevante para um desenvolvedor web/backend, responda apenas ")
	b.WriteString(IrrelevantSentinel)
	b.WriteString(". Caso contrário, responda com um JSON no formato ")
	b.WriteString(`{"summary": "resumo curto do projeto", "proposal": "rascunho de proposta em português"}`)
	b.WriteString(".")
	return b.String()
}

func parseVerdict(reply string) (models.Verdict, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.EqualFold(trimmed, IrrelevantSentinel) {
		return models.Verdict{Relevant: false}, nil
	}

	fragment := fragmentExpr.FindString(trimmed)
	if fragment == "" {
		return models.Verdict{}, fmt.Errorf("%w: %q", ErrNoAnalysis, snippet(trimmed))
	}

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(fragment), &analysis); err != nil {
		return models.Verdict{}, fmt.Errorf("%w: %v", ErrNoAnalysis, err)
	}

	return models.Verdict{Relevant: true, Analysis: analysis}, nil
}

func snippet(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
