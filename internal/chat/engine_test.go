package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/api/apitest"
	"github.com/csheth/papergraph/internal/localstore"
)

func newEngine(t *testing.T, backend *apitest.Backend, storage Storage, refreshes *atomic.Int32) *Engine {
	t.Helper()
	return NewEngine(Config{
		Backend: backend.Client(),
		Storage: storage,
		GraphChanged: func(context.Context) {
			if refreshes != nil {
				refreshes.Add(1)
			}
		},
	})
}

func TestBootstrapPrefersCachedTranscript(t *testing.T) {
	backend := apitest.New(t)
	backend.SetHistory([]api.HistoryEntry{{Role: "user", Content: "from backend"}})
	storage := localstore.NewMemory()
	require.NoError(t, storage.Put(StorageKey, []byte(`[{"role":"user","content":"cached"},
		{"role":"assistant","content":"pick one","paper_candidates":[{"arxiv_id":"1512.03385","title":"ResNet","authors":["He"],"year":2015}]}]`)))

	engine := newEngine(t, backend, storage, nil)
	require.NoError(t, engine.Bootstrap(context.Background()))

	messages := engine.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "cached", messages[0].Content)
	require.Len(t, messages[1].Candidates, 1)
	assert.Equal(t, "1512.03385", messages[1].Candidates[0].ArxivID)
	assert.Equal(t, 0, backend.Calls("GET /chat/history"))
}

func TestBootstrapKeepsMessagesSentBeforeCacheRestore(t *testing.T) {
	backend := apitest.New(t)
	backend.OnChat(func(*apitest.Backend, string) api.ChatResponse {
		return api.ChatResponse{Message: "Looking."}
	})
	storage := localstore.NewMemory()
	require.NoError(t, storage.Put(StorageKey, []byte(`[{"role":"user","content":"cached"},{"role":"assistant","content":"cached reply"}]`)))

	engine := newEngine(t, backend, storage, nil)
	_, err := engine.Send(context.Background(), "early question")
	require.NoError(t, err)
	require.NoError(t, engine.Bootstrap(context.Background()))

	messages := engine.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "cached", messages[0].Content)
	assert.Equal(t, Message{Role: RoleUser, Content: "early question"}, messages[2])
	assert.Equal(t, "Looking.", messages[3].Content)

	raw, err := storage.Get(StorageKey)
	require.NoError(t, err)
	var stored []Message
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, messages, stored)
}

func TestBootstrapFallsBackToHistory(t *testing.T) {
	cases := map[string][]byte{
		"missing":   nil,
		"empty":     []byte(`[]`),
		"malformed": []byte(`{not json`),
	}
	for name, cached := range cases {
		t.Run(name, func(t *testing.T) {
			backend := apitest.New(t)
			backend.SetHistory([]api.HistoryEntry{
				{Role: "user", Content: "hello"},
				{Role: "assistant", Content: "hi there"},
			})
			storage := localstore.NewMemory()
			if cached != nil {
				require.NoError(t, storage.Put(StorageKey, cached))
			}

			engine := newEngine(t, backend, storage, nil)
			require.NoError(t, engine.Bootstrap(context.Background()))

			messages := engine.Messages()
			require.Len(t, messages, 2)
			assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, messages[0])
			assert.Equal(t, RoleAssistant, messages[1].Role)
			assert.Equal(t, 1, backend.Calls("GET /chat/history"))
		})
	}
}

func TestBootstrapHistoryFailureLeavesEmptyTranscript(t *testing.T) {
	backend := apitest.New(t)
	backend.FailNext("GET /chat/history", 1)
	engine := newEngine(t, backend, localstore.NewMemory(), nil)

	err := engine.Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrRequestFailed))
	assert.Empty(t, engine.Messages())
	assert.True(t, engine.Empty())
}

func TestSendAppendsReplyAndSignalsGraphChange(t *testing.T) {
	backend := apitest.New(t)
	backend.OnChat(func(b *apitest.Backend, message string) api.ChatResponse {
		b.LockedAddPaper(api.Paper{ID: "1706.03762", Title: "Attention Is All You Need"})
		return api.ChatResponse{Message: "Added Attention Is All You Need.", GraphUpdated: true, PapersAdded: []string{"1706.03762"}}
	})
	refreshes := &atomic.Int32{}
	engine := newEngine(t, backend, localstore.NewMemory(), refreshes)
	require.NoError(t, engine.Bootstrap(context.Background()))

	reply, err := engine.Send(context.Background(), "  Add the Attention Is All You Need paper  ")
	require.NoError(t, err)
	assert.Equal(t, "Added Attention Is All You Need.", reply.Content)
	assert.Equal(t, int32(1), refreshes.Load())

	messages := engine.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "Add the Attention Is All You Need paper"}, messages[0])
	assert.False(t, engine.Busy())
}

func TestSendWithoutGraphUpdateDoesNotSignal(t *testing.T) {
	backend := apitest.New(t)
	refreshes := &atomic.Int32{}
	engine := newEngine(t, backend, localstore.NewMemory(), refreshes)

	_, err := engine.Send(context.Background(), "what is attention?")
	require.NoError(t, err)
	assert.Equal(t, int32(0), refreshes.Load())
}

func TestSendFailureAppendsApology(t *testing.T) {
	backend := apitest.New(t)
	backend.FailNext("POST /chat", 1)
	refreshes := &atomic.Int32{}
	engine := newEngine(t, backend, localstore.NewMemory(), refreshes)

	reply, err := engine.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, SendErrorMessage, reply.Content)

	messages := engine.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, Message{Role: RoleAssistant, Content: SendErrorMessage}, messages[1])
	assert.Equal(t, int32(0), refreshes.Load())
	assert.False(t, engine.Busy())
}

func TestSendRejectsBlankInput(t *testing.T) {
	engine := newEngine(t, apitest.New(t), localstore.NewMemory(), nil)
	_, err := engine.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, engine.Messages())
}

type blockingBackend struct {
	Backend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) SendChat(ctx context.Context, message string) (api.ChatResponse, error) {
	close(b.entered)
	<-b.release
	return api.ChatResponse{Message: "done"}, nil
}

func TestSendIsSingleFlight(t *testing.T) {
	backend := &blockingBackend{Backend: apitest.New(t).Client(), entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(Config{Backend: backend})

	done := make(chan error, 1)
	go func() {
		_, err := engine.Send(context.Background(), "first")
		done <- err
	}()
	<-backend.entered

	assert.True(t, engine.Busy())
	_, err := engine.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = engine.Choose(context.Background(), api.PaperCandidate{ArxivID: "x"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, engine.Clear(context.Background()), ErrBusy)

	close(backend.release)
	require.NoError(t, <-done)
	assert.Len(t, engine.Messages(), 2)
}

func TestChooseCandidate(t *testing.T) {
	backend := apitest.New(t)
	backend.OnSelect(func(b *apitest.Backend, req apitest.SelectRequest) api.ChatResponse {
		b.LockedAddPaper(api.Paper{ID: req.ArxivID})
		return api.ChatResponse{Message: "Added ResNet.", GraphUpdated: true, PapersAdded: []string{req.ArxivID}}
	})
	refreshes := &atomic.Int32{}
	engine := newEngine(t, backend, localstore.NewMemory(), refreshes)

	reply, err := engine.Choose(context.Background(), api.PaperCandidate{ArxivID: "1512.03385", SourcePaperID: "1706.03762"})
	require.NoError(t, err)
	assert.Equal(t, "Added ResNet.", reply.Content)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, []apitest.SelectRequest{{ArxivID: "1512.03385", SourcePaperID: "1706.03762"}}, backend.Selects())
}

func TestChooseCarriesFurtherCandidates(t *testing.T) {
	backend := apitest.New(t)
	backend.OnSelect(func(*apitest.Backend, apitest.SelectRequest) api.ChatResponse {
		return api.ChatResponse{Message: "Did you mean one of these?", PaperCandidates: []api.PaperCandidate{{ArxivID: "a"}, {ArxivID: "b"}}}
	})
	engine := newEngine(t, backend, localstore.NewMemory(), nil)

	reply, err := engine.Choose(context.Background(), api.PaperCandidate{ArxivID: "x"})
	require.NoError(t, err)
	assert.Len(t, reply.Candidates, 2)
}

func TestChooseFailureAppendsError(t *testing.T) {
	backend := apitest.New(t)
	backend.FailNext("POST /papers/select", 1)
	engine := newEngine(t, backend, localstore.NewMemory(), nil)

	reply, err := engine.Choose(context.Background(), api.PaperCandidate{ArxivID: "x"})
	require.Error(t, err)
	assert.Equal(t, ChooseErrorMessage, reply.Content)
	assert.Equal(t, []Message{{Role: RoleAssistant, Content: ChooseErrorMessage}}, engine.Messages())
}

func TestClear(t *testing.T) {
	backend := apitest.New(t)
	storage := localstore.NewMemory()
	engine := newEngine(t, backend, storage, nil)
	require.NoError(t, engine.Bootstrap(context.Background()))
	_, err := engine.Send(context.Background(), "hello")
	require.NoError(t, err)

	backend.FailNext("DELETE /chat/history", 1)
	require.Error(t, engine.Clear(context.Background()))
	assert.Len(t, engine.Messages(), 2)
	_, err = storage.Get(StorageKey)
	require.NoError(t, err)

	require.NoError(t, engine.Clear(context.Background()))
	assert.Empty(t, engine.Messages())
	assert.True(t, engine.Empty())
	_, err = storage.Get(StorageKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestTranscriptRoundTripsThroughStore(t *testing.T) {
	backend := apitest.New(t)
	backend.OnChat(func(*apitest.Backend, string) api.ChatResponse {
		return api.ChatResponse{
			Message: "Which one?",
			PaperCandidates: []api.PaperCandidate{
				{ArxivID: "1512.03385", Title: "Deep Residual Learning", Authors: []string{"He", "Zhang", "Ren"}, Year: 2015, SourcePaperID: "1706.03762"},
			},
		}
	})
	storage, err := localstore.OpenFile(t.TempDir() + "/state.json")
	require.NoError(t, err)

	first := newEngine(t, backend, storage, nil)
	require.NoError(t, first.Bootstrap(context.Background()))
	_, err = first.Send(context.Background(), "add resnet")
	require.NoError(t, err)

	reopened, err := localstore.OpenFile(storage.Path())
	require.NoError(t, err)
	second := newEngine(t, backend, reopened, nil)
	require.NoError(t, second.Bootstrap(context.Background()))

	assert.Equal(t, first.Messages(), second.Messages())
	raw, err := reopened.Get(StorageKey)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded[1], "paper_candidates")
	assert.NotContains(t, decoded[0], "paper_candidates")
}

func TestScrollMode(t *testing.T) {
	backend := apitest.New(t)
	engine := newEngine(t, backend, localstore.NewMemory(), nil)
	require.NoError(t, engine.Bootstrap(context.Background()))

	assert.Equal(t, ScrollSmooth, engine.ScrollMode())
	_, err := engine.Send(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, ScrollInstant, engine.ScrollMode())
	_, err = engine.Send(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, ScrollSmooth, engine.ScrollMode())

	require.NoError(t, engine.Clear(context.Background()))
	_, err = engine.Send(context.Background(), "three")
	require.NoError(t, err)
	assert.Equal(t, ScrollInstant, engine.ScrollMode())
}
