package service

import (
	"testing"

	"github.com/sagekit/sagekit/pkg/models"
)

func conv(id int64, status string) models.Conversation {
	return models.Conversation{
		ID:        id,
		User:      "u",
		Thread:    "t",
		Status:    status,
		UpdatedAt: id * 1000,
	}
}

func ids(t *testing.T, s *ConversationStore) []int64 {
	t.Helper()
	snap := s.Snapshot()
	out := make([]int64, len(snap))
	for i, c := range snap {
		out[i] = c.ID
	}
	return out
}

func wantIDs(t *testing.T, s *ConversationStore, want ...int64) {
	t.Helper()
	got := ids(t, s)
	if len(got) != len(want) {
		t.Fatalf("store ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("store ids = %v, want %v", got, want)
		}
	}
}

func TestUpsert_AppendsAndAdvancesWatermark(t *testing.T) {
	s := NewConversationStore(nil)

	s.Upsert(conv(1, models.StatusCompleted))
	s.Upsert(conv(2, models.StatusWorking))

	wantIDs(t, s, 1, 2)
	if got := s.LatestID(); got != 2 {
		t.Fatalf("LatestID() = %d, want 2", got)
	}
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	s := NewConversationStore(nil)

	s.Upsert(conv(1, models.StatusCompleted))
	s.Upsert(conv(2, models.StatusWorking))
	s.Upsert(conv(3, models.StatusCompleted))

	updated := conv(2, models.StatusCompleted)
	s.Upsert(updated)

	wantIDs(t, s, 1, 2, 3)
	got, ok := s.Get(2)
	if !ok || got.Status != models.StatusCompleted {
		t.Fatalf("Get(2) = %+v, want completed", got)
	}
	// Replacing must not move the watermark.
	if got := s.LatestID(); got != 3 {
		t.Fatalf("LatestID() = %d, want 3", got)
	}
}

func TestUpsert_NeverDuplicates(t *testing.T) {
	s := NewConversationStore(nil)

	for i := 0; i < 5; i++ {
		s.Upsert(conv(7, models.StatusWorking))
	}

	if got := s.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestPrependPage_InsertsOlderHistoryFirst(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{conv(10, "completed"), conv(11, "completed")}, "c10")

	s.PrependPage([]models.Conversation{conv(8, "completed"), conv(9, "completed")}, "c8")

	wantIDs(t, s, 8, 9, 10, 11)
	if got := s.PrevCursor(); got != "c8" {
		t.Fatalf("PrevCursor() = %q, want %q", got, "c8")
	}
}

func TestPrependPage_NormalizesArrivalOrder(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{conv(10, "completed")}, "c10")

	// Newest-first arrival still lands in ascending order.
	s.PrependPage([]models.Conversation{conv(9, "completed"), conv(8, "completed")}, "")

	wantIDs(t, s, 8, 9, 10)
	if got := s.PrevCursor(); got != "" {
		t.Fatalf("PrevCursor() = %q, want empty (history exhausted)", got)
	}
}

func TestReplaceWithLatestPage_Wholesale(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{conv(1, "completed"), conv(2, "completed")}, "c1")

	// No overlap: the old content is gone, cursor moves with the page.
	s.ReplaceWithLatestPage([]models.Conversation{conv(5, "completed"), conv(6, "working")}, "c5")

	wantIDs(t, s, 5, 6)
	if got := s.PrevCursor(); got != "c5" {
		t.Fatalf("PrevCursor() = %q, want %q", got, "c5")
	}
	if got := s.LatestID(); got != 6 {
		t.Fatalf("LatestID() = %d, want 6", got)
	}
}

func TestReplaceWithLatestPage_MergesAtOverlap(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{
		conv(3, "completed"), conv(4, "completed"), conv(5, "working"),
	}, "c3")

	// A refresh overlaps at id 4; ids before the overlap survive, the page
	// overwrites from there, and the pagination cursor is untouched.
	s.ReplaceWithLatestPage([]models.Conversation{
		conv(4, "completed"), conv(5, "completed"), conv(6, "working"),
	}, "ignored")

	wantIDs(t, s, 3, 4, 5, 6)
	if got, _ := s.Get(5); got.Status != models.StatusCompleted {
		t.Fatalf("Get(5).Status = %q, want completed", got.Status)
	}
	if got := s.PrevCursor(); got != "c3" {
		t.Fatalf("PrevCursor() = %q, want %q (unchanged)", got, "c3")
	}
	if got := s.LatestID(); got != 6 {
		t.Fatalf("LatestID() = %d, want 6", got)
	}
}

func TestReplaceWithLatestPage_EmptyClearsEverything(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{conv(1, "completed")}, "c1")

	s.ReplaceWithLatestPage(nil, "whatever")

	if got := s.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
	if got := s.PrevCursor(); got != "" {
		t.Fatalf("PrevCursor() = %q, want empty", got)
	}
	if got := s.LatestID(); got != 0 {
		t.Fatalf("LatestID() = %d, want 0", got)
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	s := NewConversationStore(nil)
	s.ReplaceWithLatestPage([]models.Conversation{conv(1, "completed"), conv(2, "working")}, "c1")

	s.Reset()

	if s.Len() != 0 || s.PrevCursor() != "" || s.LatestID() != 0 {
		t.Fatalf("Reset left state: len=%d cursor=%q latest=%d", s.Len(), s.PrevCursor(), s.LatestID())
	}
}
