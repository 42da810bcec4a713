package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJournal struct {
	mu      sync.Mutex
	records []CallRecord
	err     error
}

func (j *recordingJournal) RecordCall(_ context.Context, rec CallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return j.err
}

func TestFunc(t *testing.T) {
	var o Oracle = Func(func(_ context.Context, msgs []Message) (Response, error) {
		return Response{Content: msgs[len(msgs)-1].Content + "!"}, nil
	})
	resp, err := o.Invoke(context.Background(), []Message{User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hi!", resp.Content)
}

func TestSplitSystem(t *testing.T) {
	sys, rest := splitSystem([]Message{System("a"), User("q"), System("b"), {Role: RoleAssistant, Content: "r"}})
	assert.Equal(t, "a\n\nb", sys)
	assert.Equal(t, []Message{User("q"), {Role: RoleAssistant, Content: "r"}}, rest)
}

func TestPurpose(t *testing.T) {
	assert.Equal(t, "unspecified", PurposeFrom(context.Background()))
	assert.Equal(t, "collision_audit", PurposeFrom(WithPurpose(context.Background(), "collision_audit")))
}

func TestTraced_RecordsSuccessAndFailure(t *testing.T) {
	journal := &recordingJournal{}
	calls := 0
	inner := Func(func(_ context.Context, _ []Message) (Response, error) {
		calls++
		if calls == 2 {
			return Response{}, errors.New("quota exceeded")
		}
		return Response{Content: "CLEAN"}, nil
	})
	traced := NewTraced(inner, journal, "test:model")

	ctx := WithPurpose(context.Background(), "entity_extraction")
	resp, err := traced.Invoke(ctx, []Message{System("sys"), User("objective")})
	require.NoError(t, err)
	assert.Equal(t, "CLEAN", resp.Content)

	_, err = traced.Invoke(ctx, []Message{User("again")})
	require.Error(t, err)

	require.Len(t, journal.records, 2)
	ok, failed := journal.records[0], journal.records[1]
	assert.True(t, ok.Success)
	assert.Equal(t, "entity_extraction", ok.Purpose)
	assert.Equal(t, "test:model", ok.Provider)
	assert.Equal(t, 2, ok.Messages)
	assert.Equal(t, len("sys")+len("objective"), ok.PromptChars)
	assert.Equal(t, 5, ok.ResponseChars)
	assert.NotEmpty(t, ok.ID)

	assert.False(t, failed.Success)
	assert.Equal(t, "quota exceeded", failed.Error)
}

func TestTraced_JournalErrorDoesNotFailCall(t *testing.T) {
	journal := &recordingJournal{err: errors.New("disk full")}
	traced := NewTraced(Func(func(context.Context, []Message) (Response, error) {
		return Response{Content: "ok"}, nil
	}), journal, "x")

	resp, err := traced.Invoke(context.Background(), []Message{User("q")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestOllama_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.1", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: Message{Role: RoleAssistant, Content: `["auth"]`}})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "", 0.2)
	resp, err := o.Invoke(context.Background(), []Message{System("extract"), User("Replace auth")})
	require.NoError(t, err)
	assert.Equal(t, `["auth"]`, resp.Content)
	assert.Equal(t, "ollama:llama3.1", o.Name())
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m", 0).Invoke(context.Background(), []Message{User("q")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNew(t *testing.T) {
	o, err := New(context.Background(), Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, o)

	_, err = New(context.Background(), Config{Provider: "genai"})
	assert.Error(t, err, "missing API key")

	_, err = New(context.Background(), Config{Provider: "claude"})
	assert.Error(t, err)
}
