// Package chat owns the conversation transcript: sending, candidate choices, history
// hydration and local persistence.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/localstore"
)

// StorageKey is where the transcript lives in the local store.
const StorageKey = "chat_messages"

const (
	// SendErrorMessage is the assistant reply appended when a send fails.
	SendErrorMessage = "Sorry, there was an error processing your request."
	// ChooseErrorMessage is the assistant reply appended when a candidate choice fails.
	ChooseErrorMessage = "Error adding paper. Please try again."
)

var (
	// ErrBusy is returned while a send, candidate choice or clear is in flight.
	ErrBusy = errors.New("chat: request already in flight")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: message is empty")
)

// Role is the author of a message.
type Role string

const (
	// RoleUser marks messages typed in the composer.
	RoleUser Role = "user"
	// RoleAssistant marks backend replies.
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Candidates are kept so a reloaded transcript can
// still offer them.
type Message struct {
	Role       Role                 `json:"role"`
	Content    string               `json:"content"`
	Candidates []api.PaperCandidate `json:"paper_candidates,omitempty"`
}

// ScrollMode says how the view should follow a transcript change.
type ScrollMode int

const (
	// ScrollInstant jumps straight to the end of the transcript.
	ScrollInstant ScrollMode = iota
	// ScrollSmooth scrolls toward the end over a few frames.
	ScrollSmooth
)

// Backend is the part of the service the engine uses.
type Backend interface {
	SendChat(ctx context.Context, message string) (api.ChatResponse, error)
	ChatHistory(ctx context.Context) ([]api.HistoryEntry, error)
	ClearChatHistory(ctx context.Context) error
	SelectPaper(ctx context.Context, reference, sourcePaperID string) (api.ChatResponse, error)
}

// Storage is the local key/value store holding the transcript.
type Storage interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Config wires an Engine.
type Config struct {
	Backend Backend
	Storage Storage
	// GraphChanged runs after a reply reports a graph update.
	GraphChanged func(ctx context.Context)
	Logger       *log.Logger
}

// Engine is the conversation state machine: idle, then sending, then idle again.
type Engine struct {
	backend      Backend
	storage      Storage
	graphChanged func(ctx context.Context)
	logger       *log.Logger

	mu        sync.Mutex
	messages  []Message
	hydrated  bool
	busy      bool
	clearing  bool
	lastCount int
}

// NewEngine builds an Engine with an empty transcript.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	storage := cfg.Storage
	if storage == nil {
		storage = localstore.NewMemory()
	}
	return &Engine{
		backend:      cfg.Backend,
		storage:      storage,
		graphChanged: cfg.GraphChanged,
		logger:       logger,
	}
}

// Bootstrap hydrates the transcript. A non-empty cached transcript wins; otherwise the
// backend history is fetched once. Unreadable cache content is logged and skipped.
// Messages sent before hydration finishes stay after the restored ones.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if cached, ok := e.loadCached(); ok {
		e.mu.Lock()
		early := len(e.messages)
		e.messages = append(cached, e.messages...)
		e.hydrated = true
		if early > 0 {
			e.persistLocked()
		}
		e.mu.Unlock()
		e.logger.Debug("chat transcript restored from cache", "messages", len(cached), "early", early)
		return nil
	}

	e.mu.Lock()
	e.hydrated = true
	e.mu.Unlock()

	history, err := e.backend.ChatHistory(ctx)
	if err != nil {
		e.logger.Error("load chat history failed", "err", err)
		return fmt.Errorf("load chat history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}
	loaded := make([]Message, 0, len(history))
	for _, entry := range history {
		role := RoleAssistant
		if entry.Role == string(RoleUser) {
			role = RoleUser
		}
		loaded = append(loaded, Message{Role: role, Content: entry.Content})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A send that landed while history was loading keeps its place after the history.
	e.messages = append(loaded, e.messages...)
	e.persistLocked()
	return nil
}

func (e *Engine) loadCached() ([]Message, bool) {
	raw, err := e.storage.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			e.logger.Warn("read cached transcript failed", "err", err)
		}
		return nil, false
	}
	var cached []Message
	if err := json.Unmarshal(raw, &cached); err != nil {
		e.logger.Warn("ignoring malformed cached transcript", "err", err)
		return nil, false
	}
	if len(cached) == 0 {
		return nil, false
	}
	return cached, true
}

// Send posts text and appends the reply. The user message is appended before the
// request; a failed request appends SendErrorMessage and returns the error.
func (e *Engine) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if err := e.begin(); err != nil {
		return Message{}, err
	}
	e.append(Message{Role: RoleUser, Content: text})

	resp, err := e.backend.SendChat(ctx, text)
	if err != nil {
		e.logger.Error("send chat failed", "err", err)
		reply := Message{Role: RoleAssistant, Content: SendErrorMessage}
		e.finish(reply)
		return reply, fmt.Errorf("send chat: %w", err)
	}

	reply := Message{Role: RoleAssistant, Content: resp.Message, Candidates: resp.PaperCandidates}
	e.finish(reply)
	if resp.GraphUpdated {
		e.notify(ctx)
	}
	return reply, nil
}

// Choose adds one of the candidates offered in a reply. The outcome is appended as a
// new assistant message, carrying any further candidates.
func (e *Engine) Choose(ctx context.Context, candidate api.PaperCandidate) (Message, error) {
	if err := e.begin(); err != nil {
		return Message{}, err
	}

	resp, err := e.backend.SelectPaper(ctx, candidate.ArxivID, candidate.SourcePaperID)
	if err != nil {
		e.logger.Error("select candidate failed", "candidate", candidate.ArxivID, "err", err)
		reply := Message{Role: RoleAssistant, Content: ChooseErrorMessage}
		e.finish(reply)
		return reply, fmt.Errorf("select candidate %s: %w", candidate.ArxivID, err)
	}

	result := citations.Interpret(resp, true)
	reply := Message{Role: RoleAssistant, Content: result.Message, Candidates: result.Candidates}
	e.finish(reply)
	if resp.GraphUpdated || result.GraphChanged() {
		e.notify(ctx)
	}
	return reply, nil
}

// Clear wipes the backend history, then the local transcript. On failure nothing changes.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	if e.busy || e.clearing {
		e.mu.Unlock()
		return ErrBusy
	}
	e.clearing = true
	e.mu.Unlock()

	err := e.backend.ClearChatHistory(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearing = false
	if err != nil {
		e.logger.Error("clear chat history failed", "err", err)
		return fmt.Errorf("clear chat history: %w", err)
	}
	e.messages = nil
	e.lastCount = 0
	if err := e.storage.Delete(StorageKey); err != nil {
		e.logger.Warn("remove cached transcript failed", "err", err)
	}
	return nil
}

// Messages returns a copy of the transcript.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Busy reports whether a send or candidate choice is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Clearing reports whether a clear is in flight.
func (e *Engine) Clearing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearing
}

// Empty reports whether the hydrated transcript has no messages, which is when the
// starter prompts are shown.
func (e *Engine) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hydrated && len(e.messages) == 0
}

// ScrollMode is consulted after each transcript change. The first messages of a session
// snap into view; later ones animate.
func (e *Engine) ScrollMode() ScrollMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := ScrollSmooth
	if e.lastCount == 0 && len(e.messages) > 0 {
		mode = ScrollInstant
	}
	e.lastCount = len(e.messages)
	return mode
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy || e.clearing {
		return ErrBusy
	}
	e.busy = true
	return nil
}

func (e *Engine) append(msg Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	e.persistLocked()
}

func (e *Engine) finish(reply Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, reply)
	e.busy = false
	e.persistLocked()
}

func (e *Engine) persistLocked() {
	if !e.hydrated || len(e.messages) == 0 {
		return
	}
	raw, err := json.Marshal(e.messages)
	if err != nil {
		e.logger.Warn("encode transcript failed", "err", err)
		return
	}
	if err := e.storage.Put(StorageKey, raw); err != nil {
		e.logger.Warn("persist transcript failed", "err", err)
	}
}

func (e *Engine) notify(ctx context.Context) {
	if e.graphChanged != nil {
		e.graphChanged(ctx)
	}
}
