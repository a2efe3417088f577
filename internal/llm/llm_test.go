package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codemarcinu/OCR/internal/catalog"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply func(req chatRequest) string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply(req)},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIProviderGenerate(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, calls := chatServer(t, func(req chatRequest) string {
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Contains(t, req.Messages[1].Content, "LIDL")
		return "  ```json\n{\"sklep\":{}}\n```  "
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1/", Timeout: 2 * time.Second}, catalog.Default())
	require.Equal(t, DefaultModel, p.Model())

	req := ReceiptPrompt(catalog.Default(), catalog.StoreLidl, "LIDL Sp. z o.o.")
	out, err := p.Generate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "```json\n{\"sklep\":{}}\n```", out)
	require.EqualValues(t, 1, calls.Load())
}

func TestOpenAIProviderEmptyChoice(t *testing.T) {
	t.Parallel()
	srv, _ := chatServer(t, func(chatRequest) string { return "   " })
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "test"}, catalog.Default())
	_, err := p.Generate(context.Background(), Request{System: "s", User: "u"})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProviderClassify(t *testing.T) {
	t.Parallel()
	srv, _ := chatServer(t, func(req chatRequest) string {
		require.Contains(t, req.Messages[0].Content, catalog.CategoryFrozen)
		return `Oto odpowiedź: {"standardized_name":"Pizza mrożona Guseppe","category":"mrożonki","is_frozen":true}`
	})
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "test"}, catalog.Default())

	c, err := p.Classify(context.Background(), "PIZZA GUS.MROŻ")
	require.NoError(t, err)
	require.Equal(t, Classification{StandardizedName: "Pizza mrożona Guseppe", Category: "MROŻONKI", IsFrozen: true}, c)
}

func TestOpenAIProviderClassifyMissingFields(t *testing.T) {
	t.Parallel()
	srv, _ := chatServer(t, func(chatRequest) string { return `{"standardized_name":"Mleko"}` })
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "test"}, catalog.Default())

	_, err := p.Classify(context.Background(), "Mleko")
	require.Error(t, err)
}

func TestHeuristicClassify(t *testing.T) {
	t.Parallel()
	h := NewHeuristic(catalog.Default())
	ctx := context.Background()

	cases := []struct {
		in       string
		name     string
		category string
		frozen   bool
	}{
		{"MLEKO ŁACIATE 3,2% 1l", "Mleko Łaciate", catalog.CategoryDairy, false},
		{"jogurty naturalne 400g", "Jogurty Naturalne", catalog.CategoryDairy, false},
		{"Lody waniliowe", "Lody Waniliowe", catalog.CategoryFrozen, true},
		{"Chleb żytni", "Chleb Żytni", catalog.CategoryBread, false},
		{"Frytki mroż. 750g", "Frytki Mroż.", catalog.CategoryOther, true},
		{"Baterie AA", "Baterie Aa", catalog.CategoryOther, false},
	}
	for _, tc := range cases {
		got, err := h.Classify(ctx, tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.name, got.StandardizedName, tc.in)
		require.Equal(t, tc.category, got.Category, tc.in)
		require.Equal(t, tc.frozen, got.IsFrozen, tc.in)
	}

	_, err := h.Classify(ctx, "   ")
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Classify(cancelled, "Mleko")
	require.ErrorIs(t, err, context.Canceled)
}

func TestReceiptPromptMentionsVocabularies(t *testing.T) {
	t.Parallel()
	req := ReceiptPrompt(catalog.Default(), "", "tekst")
	require.Contains(t, req.System, "A=23%, B=8%, C=5%, D=0%")
	require.Contains(t, req.System, "lidl, biedronka, kaufland, auchan")
	require.NotContains(t, req.System, "- sklep:")
	require.Equal(t, "Tekst paragonu:\ntekst", req.User)

	req = ReceiptPrompt(catalog.Default(), catalog.StoreBiedronka, "tekst")
	require.Contains(t, req.System, "- sklep: BIEDRONKA.")
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	t.Parallel()
	srv, calls := chatServer(t, func(chatRequest) string { return "{}" })
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", RequireKey: true}, catalog.Default())
	_, err := p.Generate(context.Background(), Request{System: "s", User: "u"})
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Zero(t, calls.Load())
}
