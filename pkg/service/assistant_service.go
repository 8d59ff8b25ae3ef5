// Assistant service - keeps the local conversation view converged with the
// native host that owns conversations and runs the AI engine.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sagekit/sagekit/pkg/config"
	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/models"
	"github.com/sagekit/sagekit/pkg/transport"
)

// readyProbeInterval paces the assistant_info probe while the engine is
// still starting up.
const readyProbeInterval = time.Second

// AssistantService orchestrates conversation listing, prompt submission, and
// status polling against the host. All operations are safe for concurrent
// use; loads are guarded so at most one of each kind is in flight.
type AssistantService struct {
	transport transport.Transport
	store     *ConversationStore
	poller    *Poller
	emitter   *event.Emitter
	cfg       *config.AppConfig
	logger    *slog.Logger

	mu            sync.Mutex
	isLoading     bool
	isLoadingPrev bool
	isSubmitting  bool
	thinkingID    int64
	ready         bool
	userID        string
	userName      string
	callerName    string

	unsubReady func()
}

// EngineState is the UI-facing snapshot of the engine.
type EngineState struct {
	Conversations []models.Conversation `json:"conversations"`
	PrevCursor    string                `json:"prev_cursor,omitempty"`
	LatestID      int64                 `json:"latest_id"`
	IsLoading     bool                  `json:"is_loading"`
	IsLoadingPrev bool                  `json:"is_loading_prev"`
	IsSubmitting  bool                  `json:"is_submitting"`
	ThinkingID    int64                 `json:"thinking_id"`
	Ready         bool                  `json:"ready"`
}

// NewAssistantService creates the engine. The store must be the same one the
// UI reads from.
func NewAssistantService(t transport.Transport, store *ConversationStore, emitter *event.Emitter, cfg *config.AppConfig, logger *slog.Logger) *AssistantService {
	s := &AssistantService{
		transport: t,
		store:     store,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
		userID:    models.AnonymousID,
	}

	s.poller = NewPoller(
		PollConfig{
			InitialInterval:  cfg.PollInitialInterval(),
			MaxInterval:      cfg.PollMaxInterval(),
			BackoffFactor:    cfg.PollBackoffFactor(),
			StalenessCeiling: cfg.PollStalenessCeiling(),
		},
		s.fetchConversation,
		s.pollShouldContinue,
		s.onPollStop,
		logger,
	)

	return s
}

// Start wires host readiness notifications and probes the engine until it
// reports at least one agent.
func (s *AssistantService) Start(ctx context.Context) {
	s.unsubReady = s.transport.Subscribe(transport.EventAssistantReady, func(payload json.RawMessage) {
		var ev struct {
			Ready bool `json:"ready"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn("bad AssistantReady payload", "error", err)
			return
		}
		s.setReady(ev.Ready)
	})

	go s.probeReady(ctx)
}

// Stop releases subscriptions and halts all poll chains.
func (s *AssistantService) Stop() {
	if s.unsubReady != nil {
		s.unsubReady()
		s.unsubReady = nil
	}
	s.poller.CancelAll()
}

func (s *AssistantService) probeReady(ctx context.Context) {
	for {
		info, err := s.Info(ctx)
		if err != nil {
			s.logger.Debug("assistant_info probe failed", "error", err)
		} else {
			s.setReady(len(info.Agents) > 0)
			if len(info.Agents) > 0 {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(readyProbeInterval):
		}
	}
}

func (s *AssistantService) setReady(ready bool) {
	s.mu.Lock()
	changed := s.ready != ready
	s.ready = ready
	s.mu.Unlock()

	if changed {
		s.emitter.Emit(event.AssistantReadyEvent{Ready: ready})
	}
}

// Ready reports whether the host engine can accept prompts.
func (s *AssistantService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// State returns a consistent snapshot for the UI.
func (s *AssistantService) State() EngineState {
	s.mu.Lock()
	st := EngineState{
		IsLoading:     s.isLoading,
		IsLoadingPrev: s.isLoadingPrev,
		IsSubmitting:  s.isSubmitting,
		ThinkingID:    s.thinkingID,
		Ready:         s.ready,
	}
	s.mu.Unlock()

	st.Conversations = s.store.Snapshot()
	st.PrevCursor = s.store.PrevCursor()
	st.LatestID = s.store.LatestID()
	return st
}

// Info fetches the engine card.
func (s *AssistantService) Info(ctx context.Context) (*models.EngineCard, error) {
	raw, err := s.transport.Call(ctx, transport.CmdAssistantInfo, nil)
	if err != nil {
		return nil, err
	}
	var card models.EngineCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Name returns the assistant's self-chosen name, if it has one.
func (s *AssistantService) Name(ctx context.Context) (string, error) {
	raw, err := s.transport.Call(ctx, transport.CmdAssistantName, nil)
	if err != nil {
		return "", err
	}
	var name *string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", err
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

// SetUserName records the display name used in prompt metadata and refreshes
// the host-side caller name.
func (s *AssistantService) SetUserName(ctx context.Context, name string) {
	s.mu.Lock()
	s.userName = name
	s.mu.Unlock()

	raw, err := s.transport.Call(ctx, transport.CmdCallerName, nil)
	if err != nil {
		s.logger.Warn("caller_name failed", "error", err)
		return
	}
	var caller *string
	if err := json.Unmarshal(raw, &caller); err != nil {
		s.logger.Warn("bad caller_name payload", "error", err)
		return
	}

	s.mu.Lock()
	if caller != nil {
		s.callerName = *caller
	} else {
		s.callerName = ""
	}
	s.mu.Unlock()
}

// LoadLatestConversations fetches the most recent page and reconciles it into
// the store. A second call while one is in flight is a no-op.
func (s *AssistantService) LoadLatestConversations(ctx context.Context) error {
	s.mu.Lock()
	if s.isLoading {
		s.mu.Unlock()
		return nil
	}
	s.isLoading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isLoading = false
		s.mu.Unlock()
	}()

	out, err := transport.MemoryCall[[]models.Conversation](ctx, s.transport, models.MemoryArgs{
		Type:  models.OpListPrevConversations,
		Limit: s.cfg.PageSize(),
	})
	if err != nil {
		s.logger.Error("load latest conversations failed", "error", err)
		return err
	}

	s.store.ReplaceWithLatestPage(out.Output.Result, out.Output.NextCursor)
	return nil
}

// LoadPreviousConversations pages older history in. It returns whether more
// history remains. Without a cursor, or while another previous-page load is
// in flight, it is a no-op returning false.
func (s *AssistantService) LoadPreviousConversations(ctx context.Context) (bool, error) {
	cursor := s.store.PrevCursor()
	if cursor == "" {
		return false, nil
	}

	s.mu.Lock()
	if s.isLoadingPrev {
		s.mu.Unlock()
		return false, nil
	}
	s.isLoadingPrev = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isLoadingPrev = false
		s.mu.Unlock()
	}()

	// Pagination shares the round trip with a latency floor so rapid
	// scrolling doesn't flicker.
	started := time.Now()

	out, err := transport.MemoryCall[[]models.Conversation](ctx, s.transport, models.MemoryArgs{
		Type:   models.OpListPrevConversations,
		Cursor: cursor,
		Limit:  s.cfg.PageSize(),
	})

	if remaining := s.cfg.MinPageLatency() - time.Since(started); remaining > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}

	if err != nil {
		s.logger.Error("load previous conversations failed", "error", err)
		return false, err
	}

	if len(out.Output.Result) == 0 {
		return false, nil
	}

	s.store.PrependPage(out.Output.Result, out.Output.NextCursor)
	return s.store.PrevCursor() != "", nil
}

// SubmitPrompt sends the prompt to the host agent and begins polling the
// conversation it creates. Blank input is silently ignored.
func (s *AssistantService) SubmitPrompt(ctx context.Context, content string, resources []models.Resource) error {
	prompt := strings.TrimSpace(content)
	if prompt == "" {
		return nil
	}

	s.mu.Lock()
	s.isSubmitting = true
	user := s.callerName
	if user == "" {
		user = s.userName
	}
	s.mu.Unlock()
	s.emitter.Emit(event.SubmittingChangedEvent{Submitting: true})

	defer func() {
		s.mu.Lock()
		s.isSubmitting = false
		s.mu.Unlock()
		s.emitter.Emit(event.SubmittingChangedEvent{Submitting: false})
	}()

	input := models.AgentInput{
		Name:      "assistant",
		Prompt:    prompt,
		Resources: resources,
	}
	if user != "" {
		input.Meta = map[string]string{"user": user}
	}

	out, err := transport.AgentRun(ctx, s.transport, input)
	if err != nil {
		s.logger.Error("agent_run failed", "error", err)
		return err
	}

	if out.Conversation != 0 {
		s.setThinking(out.Conversation)
		if err := s.poller.Poll(ctx, out.Conversation); err != nil {
			s.logger.Error("initial conversation fetch failed", "id", out.Conversation, "error", err)
			return err
		}
	}

	if out.FailedReason != "" {
		s.logger.Error("agent_run reported failure", "reason", out.FailedReason)
		return &transport.BackendError{Op: transport.CmdAgentRun, Reason: out.FailedReason}
	}
	return nil
}

// StopActive asks the host to stop the conversation currently being waited
// on. Stopping is best-effort: the thinking flag clears even when the host
// call fails.
func (s *AssistantService) StopActive(ctx context.Context) error {
	s.mu.Lock()
	id := s.thinkingID
	s.mu.Unlock()
	if id == 0 {
		return nil
	}

	s.poller.Cancel(id)
	defer s.clearThinking(id)

	out, err := transport.MemoryCall[models.Conversation](ctx, s.transport, models.MemoryArgs{
		Type: models.OpStopConversation,
		ID:   id,
	})
	if err != nil {
		s.logger.Error("stop conversation failed", "id", id, "error", err)
		return err
	}

	s.store.Upsert(out.Output.Result)
	return nil
}

// ListKipLogs pages through the host's knowledge-graph command log.
func (s *AssistantService) ListKipLogs(ctx context.Context, cursor string, limit int) (*models.Response[[]models.KIPLog], error) {
	out, err := transport.MemoryCall[[]models.KIPLog](ctx, s.transport, models.MemoryArgs{
		Type:   models.OpListKipLogs,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("list kip logs failed", "error", err)
		return nil, err
	}
	return &out.Output, nil
}

// ResetForIdentity discards all user-scoped state when the signed-in user
// changes. Identity is the trust boundary for conversation data; nothing
// belonging to the previous user may survive. Calling it with the current
// user id is a no-op.
func (s *AssistantService) ResetForIdentity(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	s.userName = ""
	s.callerName = ""
	s.isLoading = false
	s.isLoadingPrev = false
	s.isSubmitting = false
	thinking := s.thinkingID
	s.thinkingID = 0
	s.mu.Unlock()

	s.poller.CancelAll()
	s.store.Reset()

	if thinking != 0 {
		s.emitter.Emit(event.ThinkingChangedEvent{ID: 0})
	}
}

// Conversation returns one conversation from the local view.
func (s *AssistantService) Conversation(id int64) (models.Conversation, bool) {
	return s.store.Get(id)
}

// ThinkingID returns the id of the conversation being waited on, 0 if none.
func (s *AssistantService) ThinkingID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinkingID
}

func (s *AssistantService) setThinking(id int64) {
	s.mu.Lock()
	changed := s.thinkingID != id
	s.thinkingID = id
	s.mu.Unlock()
	if changed {
		s.emitter.Emit(event.ThinkingChangedEvent{ID: id})
	}
}

// clearThinking clears the flag only if it still refers to the given id.
func (s *AssistantService) clearThinking(id int64) {
	s.mu.Lock()
	if s.thinkingID != id {
		s.mu.Unlock()
		return
	}
	s.thinkingID = 0
	s.mu.Unlock()
	s.emitter.Emit(event.ThinkingChangedEvent{ID: 0})
}

// fetchConversation is the poller's fetch: get one conversation and merge it.
func (s *AssistantService) fetchConversation(ctx context.Context, id int64) error {
	out, err := transport.MemoryCall[models.Conversation](ctx, s.transport, models.MemoryArgs{
		Type: models.OpGetConversation,
		ID:   id,
	})
	if err != nil {
		return err
	}

	s.store.Upsert(out.Output.Result)
	return nil
}

// pollShouldContinue keeps polling while the conversation is in flight and
// its last update is fresh enough.
func (s *AssistantService) pollShouldContinue(id int64, now time.Time) (bool, stopReason) {
	conv, ok := s.store.Get(id)
	if !ok {
		// Store was reset under us (identity change).
		return false, stopCancelled
	}
	if conv.IsTerminal() {
		return false, stopTerminal
	}
	if now.UnixMilli()-conv.UpdatedAt >= s.cfg.PollStalenessCeiling().Milliseconds() {
		return false, stopStale
	}
	return true, stopTerminal
}

// onPollStop clears the thinking flag once the chain for that conversation
// winds down. Superseded or cancelled chains don't touch the flag: their
// successor (or StopActive/identity reset) owns it.
func (s *AssistantService) onPollStop(id int64, reason stopReason) {
	if reason == stopCancelled {
		return
	}
	s.clearThinking(id)
}
