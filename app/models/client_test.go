package models

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"GoEvolveAI/app/restclient"
)

func TestLLMClientGenerateRetriesTransportErrors(t *testing.T) {
	rc := &restclient.MockRestClient{}
	ok := []byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hello"}}]}`)
	rc.On("Post", mock.Anything, endpoint, mock.Anything, mock.Anything).Return(nil, 0, errors.New("boom")).Once()
	rc.On("Post", mock.Anything, endpoint, mock.Anything, mock.Anything).Return(ok, http.StatusOK, nil).Once()

	client := &LLMClient{restClient: rc, model: "m", maxRetries: 3, backoff: time.Millisecond}
	out, err := client.Generate(context.Background(), Prompt("sys", "user"))

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	rc.AssertNumberOfCalls(t, "Post", 2)
}

func TestLLMClientGenerateDoesNotRetryClientErrors(t *testing.T) {
	rc := &restclient.MockRestClient{}
	rc.On("Post", mock.Anything, endpoint, mock.Anything, mock.Anything).Return([]byte("bad"), http.StatusBadRequest, nil)

	client := &LLMClient{restClient: rc, model: "m", maxRetries: 3, backoff: time.Millisecond}
	_, err := client.Generate(context.Background(), Prompt("sys", "user"))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	rc.AssertNumberOfCalls(t, "Post", 1)
}

func TestLLMClientGenerateEmptyChoices(t *testing.T) {
	rc := &restclient.MockRestClient{}
	rc.On("Post", mock.Anything, endpoint, mock.Anything, mock.Anything).Return([]byte(`{"choices":[]}`), http.StatusOK, nil)

	client := &LLMClient{restClient: rc, maxRetries: 1, backoff: time.Millisecond}
	_, err := client.Generate(context.Background(), Prompt("sys", "user"))
	require.Error(t, err)
}

func TestAnthropicClientGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, anthropicEndpoint, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body, _ := io.ReadAll(r.Body)
		var req anthropicRequest
		if !assert.NoError(t, json.Unmarshal(body, &req)) || !assert.Len(t, req.Messages, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "sys", req.System)
		assert.Equal(t, UserRole, req.Messages[0].Role)
		assert.Equal(t, 8192, req.MaxTokens)

		w.Write([]byte(`{"type":"message","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}`))
	}))
	defer ts.Close()

	client := NewAnthropicClient(Config{BaseURL: ts.URL, APIKey: "secret", Model: "m", Timeout: time.Second})
	out, err := client.Generate(context.Background(), Prompt("sys", "user"))

	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)
}

func TestAnthropicClientRetriesServerErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer ts.Close()

	client := NewAnthropicClient(Config{BaseURL: ts.URL, APIKey: "k", MaxRetries: 2, Timeout: time.Second})
	client.backoff = time.Millisecond

	out, err := client.Generate(context.Background(), Prompt("sys", "user"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, calls)
}

func TestAnthropicGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewAnthropicClient(Config{BaseURL: ts.URL, APIKey: "k", MaxRetries: 2, Timeout: time.Second})
	client.backoff = time.Millisecond

	_, err := client.Generate(context.Background(), Prompt("sys", "user"))
	assert.ErrorContains(t, err, "request failed after 2 attempts")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, 2, calls)
}

func TestNewGenerator(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic", Config{Provider: ProviderAnthropic, APIKey: "k"}, false},
		{"anthropic_without_key", Config{Provider: ProviderAnthropic}, true},
		{"openai", Config{Provider: ProviderOpenAI}, false},
		{"unknown", Config{Provider: "nope"}, true},
	}
	for _, cse := range cases {
		t.Run(cse.name, func(t *testing.T) {
			g, err := NewGenerator(cse.cfg)
			if cse.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, g)
		})
	}
}
