package classifier_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/project-radar/backend/internal/classifier"
)

type geminiStub struct {
	replies  []string
	requests []map[string]any
	status   int
}

func (g *geminiStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.requests = append(g.requests, body)

		if g.status != 0 {
			http.Error(w, "quota exceeded", g.status)
			return
		}

		reply := ""
		if len(g.replies) > 0 {
			reply = g.replies[0]
			g.replies = g.replies[1:]
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%s}]}}]}`, mustJSON(reply))
	}
}

func mustJSON(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func (g *geminiStub) contents(i int) []any {
	return g.requests[i]["contents"].([]any)
}

func newSession(t *testing.T, stub *geminiStub) *classifier.Session {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return classifier.NewSession(srv.URL, "gemini-2.5-flash", "test-key", srv.Client())
}

func TestClassifyRelevant(t *testing.T) {
	stub := &geminiStub{replies: []string{
		"Claro! Aqui está a análise:\n{\"summary\": \"Site institucional em WordPress\", \"proposal\": \"Olá, posso ajudar...\"}\nEspero que ajude.",
	}}
	s := newSession(t, stub)

	verdict, err := s.Classify(context.Background(), "Site institucional", "Preciso de um site")
	require.NoError(t, err)
	require.True(t, verdict.Relevant)
	require.Equal(t, "Site institucional em WordPress", verdict.Analysis.Summary)
	require.Equal(t, "Olá, posso ajudar...", verdict.Analysis.Proposal)
}

func TestClassifyIrrelevantSentinel(t *testing.T) {
	for _, reply := range []string{"IRRELEVANTE", "irrelevante", "  Irrelevante \n"} {
		stub := &geminiStub{replies: []string{reply}}
		s := newSession(t, stub)

		verdict, err := s.Classify(context.Background(), "Logo design", "Preciso de um logo")
		require.NoError(t, err, "reply %q", reply)
		require.False(t, verdict.Relevant, "reply %q", reply)
	}
}

func TestClassifyNoFragment(t *testing.T) {
	stub := &geminiStub{replies: []string{"Esse projeto parece interessante, mas não tenho certeza."}}
	s := newSession(t, stub)

	_, err := s.Classify(context.Background(), "Projeto", "Descrição")
	require.ErrorIs(t, err, classifier.ErrNoAnalysis)
}

func TestClassifyMalformedFragment(t *testing.T) {
	stub := &geminiStub{replies: []string{`{"summary": "ok", "proposal": }`}}
	s := newSession(t, stub)

	_, err := s.Classify(context.Background(), "Projeto", "Descrição")
	require.ErrorIs(t, err, classifier.ErrNoAnalysis)
}

func TestClassifyTransportFailure(t *testing.T) {
	stub := &geminiStub{status: http.StatusTooManyRequests}
	s := newSession(t, stub)

	_, err := s.Classify(context.Background(), "Projeto", "Descrição")
	require.Error(t, err)
	require.NotErrorIs(t, err, classifier.ErrNoAnalysis)
	require.Equal(t, 0, s.Turns())
}

func TestSessionCarriesHistoryAcrossItems(t *testing.T) {
	stub := &geminiStub{replies: []string{
		"IRRELEVANTE",
		`{"summary": "s", "proposal": "p"}`,
	}}
	s := newSession(t, stub)

	_, err := s.Classify(context.Background(), "Primeiro", "descrição um")
	require.NoError(t, err)
	require.Equal(t, 2, s.Turns())

	_, err = s.Classify(context.Background(), "Segundo", "descrição dois")
	require.NoError(t, err)
	require.Equal(t, 4, s.Turns())

	// First request carries one turn, second carries the full conversation.
	require.Len(t, stub.contents(0), 1)
	require.Len(t, stub.contents(1), 3)
}

func TestPromptContainsTitleAndDescription(t *testing.T) {
	stub := &geminiStub{replies: []string{"IRRELEVANTE"}}
	s := newSession(t, stub)

	_, err := s.Classify(context.Background(), "Meu título", "minha descrição limpa")
	require.NoError(t, err)

	turn := stub.contents(0)[0].(map[string]any)
	parts := turn["parts"].([]any)
	text := parts[0].(map[string]any)["text"].(string)
	require.Contains(t, text, "Meu título")
	require.Contains(t, text, "minha descrição limpa")
	require.Contains(t, text, classifier.IrrelevantSentinel)
}
