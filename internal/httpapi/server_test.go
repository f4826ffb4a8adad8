package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/pipeline"
	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

type stubRetriever struct {
	results []vectorstore.Result
	err     error
}

func (s *stubRetriever) Search(ctx context.Context, query string) ([]vectorstore.Result, error) {
	return s.results, s.err
}

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 5000
	cfg.Models.LLMProvider = "openai"
	cfg.Models.EmbeddingProvider = "openai"
	cfg.Models.OpenAI.APIKey = config.Secret("sk-test")
	cfg.Prompts.AnswerTemplate = config.DefaultAnswerTemplate
	return cfg
}

// newTestServer wires a server whose cache builds pipelines from stubs, so
// handler behavior can be exercised without model backends.
func newTestServer(t *testing.T, retriever pipeline.Retriever, gen *stubGenerator, buildErr error) *Server {
	t.Helper()
	cfg := testConfig()
	registry := provider.NewRegistry(cfg.Models, nil)

	build := func(ctx context.Context, key pipeline.Key) (*pipeline.Pipeline, error) {
		if p := provider.Normalize(key.LLMProvider); p != "openai" && p != "vertexai" && p != "ollama" {
			return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedProvider, key.LLMProvider)
		}
		if buildErr != nil {
			return nil, buildErr
		}
		return pipeline.New(retriever, gen, nil, pipeline.Options{
			AnswerTemplate: cfg.Prompts.AnswerTemplate,
		}, nil)
	}
	cache := pipeline.NewCache(registry, build)

	srv, err := NewServer(cfg, registry, cache, pipeline.Key{
		LLMProvider:       cfg.Models.LLMProvider,
		EmbeddingProvider: cfg.Models.EmbeddingProvider,
	}, nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestAskAnswersQuestion(t *testing.T) {
	retriever := &stubRetriever{results: []vectorstore.Result{
		{Content: "R1: C1", Metadata: map[string]string{"source": "product.json", "title": "T"}},
	}}
	srv := newTestServer(t, retriever, &stubGenerator{response: "C1 is required."}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/ask", `{"question": "What does R1 require?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var answer pipeline.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "C1 is required.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "T", answer.Sources[0].Title)
}

func TestAskAcceptsMessageField(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/ask", `{"message": "hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAskMissingQuestion(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/ask", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "question")
}

func TestAskUnsupportedProvider(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/ask", `{"question": "q", "llm_provider": "anthropic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskPipelineFailureIsBadGateway(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("store offline")}
	srv := newTestServer(t, retriever, &stubGenerator{err: errors.New("down")}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/ask", `{"question": "q"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "retrieval failed")
}

func TestHealthOK(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthDegradedWhenPipelineUnavailable(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{}, errors.New("no index"))

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Error, "no index")
}

func TestConfigRedactsSecrets(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "sk-test")
	assert.Contains(t, body, "[REDACTED]")
}

func TestProvidersEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, &stubGenerator{response: "ok"}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []provider.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 3)

	names := make([]string, 0, 3)
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"openai", "vertexai", "ollama"}, names)
}
