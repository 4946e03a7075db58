package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func closedURL() string {
	ts := httptest.NewServer(nil)
	ts.Close()
	return ts.URL
}

func TestNewUnsupportedBackend(t *testing.T) {
	var hits atomic.Int32
	ts := jsonServer(t, http.StatusOK, `{}`, func(*http.Request) { hits.Add(1) })

	b, err := New(context.Background(), Descriptor{Kind: "codex", Endpoint: ts.URL})
	require.ErrorIs(t, err, ErrUnsupportedBackend)
	assert.ErrorContains(t, err, "gemini")
	assert.Nil(t, b)

	d := NewDispatcher()
	_, err = d.Generate(context.Background(), "add two numbers", Descriptor{Kind: "", Endpoint: ts.URL})
	require.ErrorIs(t, err, ErrUnsupportedBackend)
	assert.Zero(t, hits.Load())
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	ts := jsonServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"`+"```go\\nint add(a,b){return a+b;}\\n```"+`"}}]}`,
		func(r *http.Request) {
			assert.Equal(t, chatEndpoint, r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		})

	b := NewOpenAI(Descriptor{Kind: KindOpenAI, Endpoint: ts.URL, APIKey: "sk-test", Organization: "org-1"})
	text, err := b.Generate(context.Background(), "add two numbers")
	require.NoError(t, err)
	assert.Equal(t, "int add(a,b){return a+b;}", text)

	assert.Equal(t, defaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "add two numbers", got.Messages[0].Content)
	assert.Equal(t, 1000, got.MaxTokens)
}

func TestBackendErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		status int
		body   string
		closed bool
		want   error
	}{
		{"openai_no_choices", KindOpenAI, http.StatusOK, `{"choices":[]}`, false, ErrBackendResponse},
		{"openai_no_message", KindOpenAI, http.StatusOK, `{"choices":[{"index":0}]}`, false, ErrBackendResponse},
		{"openai_not_json", KindOpenAI, http.StatusOK, `<html>`, false, ErrBackendResponse},
		{"openai_empty_body", KindOpenAI, http.StatusOK, ``, false, ErrBackendResponse},
		{"openai_server_error", KindOpenAI, http.StatusInternalServerError, `{"error":"boom"}`, false, ErrBackendTransport},
		{"openai_unreachable", KindOpenAI, 0, ``, true, ErrBackendTransport},
		{"hf_empty_list", KindHuggingFace, http.StatusOK, `[]`, false, ErrBackendResponse},
		{"hf_missing_field", KindHuggingFace, http.StatusOK, `[{"text":"x"}]`, false, ErrBackendResponse},
		{"hf_object_reply", KindHuggingFace, http.StatusOK, `{"generated_text":"x"}`, false, ErrBackendResponse},
		{"hf_empty_text", KindHuggingFace, http.StatusOK, `[{"generated_text":"   "}]`, false, ErrBackendResponse},
		{"hf_unauthorized", KindHuggingFace, http.StatusUnauthorized, `{"error":"token"}`, false, ErrBackendTransport},
		{"local_missing_field", KindLocal, http.StatusOK, `{"text":"x"}`, false, ErrBackendResponse},
		{"local_empty_text", KindLocal, http.StatusOK, `{"generated_text":""}`, false, ErrBackendResponse},
		{"local_not_json", KindLocal, http.StatusOK, `nope`, false, ErrBackendResponse},
		{"local_unreachable", KindLocal, 0, ``, true, ErrBackendTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint := closedURL()
			if !tc.closed {
				endpoint = jsonServer(t, tc.status, tc.body, nil).URL
			}
			b, err := New(context.Background(), Descriptor{Kind: tc.kind, Endpoint: endpoint, Timeout: time.Second})
			require.NoError(t, err)

			_, err = b.Generate(context.Background(), "prompt")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			other := ErrBackendResponse
			if tc.want == ErrBackendResponse {
				other = ErrBackendTransport
			}
			assert.NotErrorIs(t, err, other)
		})
	}
}

func TestHuggingFaceGenerate(t *testing.T) {
	ts := jsonServer(t, http.StatusOK, `[{"generated_text":"first"},{"generated_text":"second"}]`, func(r *http.Request) {
		assert.Equal(t, "/models/bigcode/starcoder", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		var in inferenceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "sort a slice", in.Inputs)
	})

	b := NewHuggingFace(Descriptor{Kind: KindHuggingFace, Model: "bigcode/starcoder", Endpoint: ts.URL, APIKey: "hf-token"})
	text, err := b.Generate(context.Background(), "sort a slice")
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestLocalGenerate(t *testing.T) {
	ts := jsonServer(t, http.StatusOK, `{"generated_text":"func add(a, b int) int { return a + b }"}`, func(r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var in localRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "add two numbers", in.Prompt)
	})

	b := NewLocal(Descriptor{Kind: KindLocal, Endpoint: ts.URL})
	text, err := b.Generate(context.Background(), "add two numbers")
	require.NoError(t, err)
	assert.Equal(t, "func add(a, b int) int { return a + b }", text)
}

func TestGeminiGenerate(t *testing.T) {
	ts := jsonServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"int add(a,b){return a+b;}"}]}}]}`, nil)

	b, err := New(context.Background(), Descriptor{Kind: KindGemini, Endpoint: ts.URL, APIKey: "g-key"})
	require.NoError(t, err)
	text, err := b.Generate(context.Background(), "add two numbers")
	require.NoError(t, err)
	assert.Equal(t, "int add(a,b){return a+b;}", text)
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Descriptor{Kind: KindGemini})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedBackend)
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"plain":                           "plain",
		"```\ncode\n```":                  "code",
		"```json\n{\"a\":1}\n```":         "{\"a\":1}",
		"  ```go\nfunc f() {}\n  ```  \n": "func f() {}",
		"keep ``` inline":                 "keep ``` inline",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFences(in), "input %q", in)
	}
}

func TestDispatcherReusesBackend(t *testing.T) {
	d := NewDispatcher()
	desc := Descriptor{Kind: KindLocal, Endpoint: "http://localhost:1"}

	first, err := d.backend(context.Background(), desc)
	require.NoError(t, err)
	second, err := d.backend(context.Background(), desc)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := d.backend(context.Background(), Descriptor{Kind: KindLocal, Endpoint: "http://localhost:2"})
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestDispatcherGenerate(t *testing.T) {
	ts := jsonServer(t, http.StatusOK, `{"generated_text":"ok"}`, nil)
	d := NewDispatcher()
	text, err := d.Generate(context.Background(), "prompt", Descriptor{Kind: KindLocal, Endpoint: ts.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestWithRetry(t *testing.T) {
	transport := errors.Join(ErrBackendTransport, errors.New("connection refused"))

	t.Run("recovers_after_transport_error", func(t *testing.T) {
		var logs bytes.Buffer
		logger := log.New(&logs, "", 0)
		m := &mockBackend{}
		m.On("Generate", mock.Anything, "p").Return("", transport).Once()
		m.On("Generate", mock.Anything, "p").Return("done", nil).Once()

		text, err := WithRetry(m, 3, time.Millisecond, logger).Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "done", text)
		m.AssertNumberOfCalls(t, "Generate", 2)
		assert.Contains(t, logs.String(), "Attempt 1 failed")
	})

	t.Run("response_error_is_not_retried", func(t *testing.T) {
		m := &mockBackend{}
		m.On("Generate", mock.Anything, "p").Return("", ErrBackendResponse)

		_, err := WithRetry(m, 3, time.Millisecond, nil).Generate(context.Background(), "p")
		require.ErrorIs(t, err, ErrBackendResponse)
		m.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("gives_up", func(t *testing.T) {
		m := &mockBackend{}
		m.On("Generate", mock.Anything, "p").Return("", transport)

		_, err := WithRetry(m, 2, time.Millisecond, nil).Generate(context.Background(), "p")
		require.ErrorIs(t, err, ErrBackendTransport)
		m.AssertNumberOfCalls(t, "Generate", 2)
	})
}

func TestRetryingDispatcherWrapsBackends(t *testing.T) {
	d := NewRetryingDispatcher(3, time.Millisecond, nil)
	b, err := d.backend(context.Background(), Descriptor{Kind: KindLocal})
	require.NoError(t, err)
	_, ok := b.(*retrying)
	assert.True(t, ok)

	single := NewRetryingDispatcher(1, time.Millisecond, nil)
	b, err = single.backend(context.Background(), Descriptor{Kind: KindLocal})
	require.NoError(t, err)
	_, ok = b.(*Local)
	assert.True(t, ok)
}
