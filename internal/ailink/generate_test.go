package ailink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
	"github.com/adrianaguero/chatgate/internal/core"
)

func composedFixture() *prompt.Composed {
	return &prompt.Composed{
		System: "<security>\nrules\n</security>",
		Messages: []core.ChatMessage{
			{Role: core.RoleUser, Content: "Hola"},
		},
	}
}

func TestGenerateMissingCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	require.False(t, client.HasCredential())

	_, err := client.Generate(context.Background(), composedFixture())
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindMissingCredential, gerr.Kind)
	assert.Equal(t, ProviderGemini, gerr.Provider)
	assert.ErrorIs(t, err, driver.ErrMissingAPIKey)
	assert.Zero(t, hits.Load())
}

func TestGenerateUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad key"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, server.Client())
	_, err := client.Generate(context.Background(), composedFixture())

	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindUpstreamFailure, gerr.Kind)
	assert.Equal(t, CodeProviderAuth, gerr.Code)
}

func TestGenerateUnreachableUpstream(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: url}, nil)
	_, err := client.Generate(context.Background(), composedFixture())
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
}

func TestGenerateStreamsThroughConfiguredProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/custom-model:streamGenerateContent", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Contains(t, payload, "systemInstruction")
		config, ok := payload["generationConfig"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 0.4, config["temperature"])
		assert.EqualValues(t, 256, config["maxOutputTokens"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hola!\"}]}}]}\n\n")
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:          "k",
		BaseURL:         server.URL,
		Model:           "custom-model",
		Temperature:     0.4,
		MaxOutputTokens: 256,
	}, server.Client())

	stream, err := client.Generate(context.Background(), composedFixture())
	require.NoError(t, err)
	defer stream.Close() // nolint:errcheck // test cleanup

	chunk, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hola!", string(chunk))

	_, err = stream.Next(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestBuildRequestOmitsZeroTuning(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, nil)
	req := client.buildRequest("m", composedFixture())
	assert.Nil(t, req.Temperature)
	assert.Nil(t, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "Hola", req.Messages[0].Text())
}
