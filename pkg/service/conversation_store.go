package service

import (
	"sort"
	"sync"

	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/models"
)

// ConversationStore is the client-side projection of conversation history:
// an ordered sequence of conversations with unique ids, plus the backward
// pagination cursor and the highest id seen (the watermark).
//
// Mutations never reorder existing entries except for prepends during
// backward pagination, and every mutation is atomic under the store lock.
type ConversationStore struct {
	mu      sync.RWMutex
	items   []models.Conversation
	index   map[int64]int // id -> position in items
	cursor  string        // opaque token for older history, "" = none
	latest  int64         // watermark, 0 = none
	emitter *event.Emitter
}

// NewConversationStore creates an empty store. The emitter may be nil.
func NewConversationStore(emitter *event.Emitter) *ConversationStore {
	return &ConversationStore{
		index:   make(map[int64]int),
		emitter: emitter,
	}
}

// Upsert inserts a conversation or replaces the entry with the same id in
// place. A fresh id appends and advances the watermark.
func (s *ConversationStore) Upsert(conv models.Conversation) {
	s.mu.Lock()
	if idx, ok := s.index[conv.ID]; ok {
		s.items[idx] = conv
	} else {
		s.index[conv.ID] = len(s.items)
		s.items = append(s.items, conv)
		s.latest = conv.ID
	}
	s.mu.Unlock()

	s.emit(event.ConversationUpsertEvent{ID: conv.ID, Status: conv.Status})
}

// PrependPage inserts an older page before all current entries and updates
// the pagination cursor. Entries already present are skipped. Pages are
// normalized to ascending-id order regardless of arrival order.
func (s *ConversationStore) PrependPage(page []models.Conversation, nextCursor string) {
	s.mu.Lock()

	fresh := make([]models.Conversation, 0, len(page))
	for _, conv := range page {
		if _, ok := s.index[conv.ID]; !ok {
			fresh = append(fresh, conv)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	s.items = append(fresh, s.items...)
	s.reindex()
	s.cursor = nextCursor

	prepended := len(fresh)
	hasMore := s.cursor != ""
	s.mu.Unlock()

	s.emit(event.ConversationPageEvent{Prepended: prepended, HasMore: hasMore})
}

// ReplaceWithLatestPage reconciles the most recent page into the store.
//
// An empty page means the user has no conversations: everything is cleared.
// If the page's oldest entry is already held, the page overwrites the store
// from that position on (merge, no duplicates, older history kept). Otherwise
// the page replaces the store wholesale and the cursor moves to the page's
// next cursor.
func (s *ConversationStore) ReplaceWithLatestPage(page []models.Conversation, nextCursor string) {
	s.mu.Lock()

	if len(page) == 0 {
		s.items = nil
		s.index = make(map[int64]int)
		s.cursor = ""
		s.latest = 0
		s.mu.Unlock()

		s.emit(event.ConversationsResetEvent{})
		return
	}

	s.latest = page[len(page)-1].ID

	if idx, ok := s.index[page[0].ID]; ok {
		s.items = append(s.items[:idx:idx], page...)
	} else {
		s.items = append([]models.Conversation(nil), page...)
		s.cursor = nextCursor
	}
	s.reindex()

	hasMore := s.cursor != ""
	s.mu.Unlock()

	s.emit(event.ConversationPageEvent{HasMore: hasMore})
}

// Reset discards all conversations, the cursor, and the watermark.
func (s *ConversationStore) Reset() {
	s.mu.Lock()
	s.items = nil
	s.index = make(map[int64]int)
	s.cursor = ""
	s.latest = 0
	s.mu.Unlock()

	s.emit(event.ConversationsResetEvent{})
}

// Get returns the conversation with the given id.
func (s *ConversationStore) Get(id int64) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.index[id]; ok {
		return s.items[idx], true
	}
	return models.Conversation{}, false
}

// Snapshot returns a copy of the ordered conversation list.
func (s *ConversationStore) Snapshot() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// PrevCursor returns the token for loading older history, "" when exhausted.
func (s *ConversationStore) PrevCursor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// LatestID returns the watermark: the highest conversation id known locally.
func (s *ConversationStore) LatestID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// reindex rebuilds the id index. Caller holds the lock.
func (s *ConversationStore) reindex() {
	s.index = make(map[int64]int, len(s.items))
	for i, conv := range s.items {
		s.index[conv.ID] = i
	}
}

func (s *ConversationStore) emit(ev event.Event) {
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}
