package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	AssistantReady     = "assistant.ready"
	ConversationUpsert = "conversation.upserted"
	ConversationPage   = "conversation.pageLoaded"
	ConversationsReset = "conversation.reset"
	ThinkingChanged    = "assistant.thinkingChanged"
	SubmittingChanged  = "assistant.submittingChanged"
	IdentityChanged    = "auth.identityChanged"
	UserProfileChanged = "auth.userProfileChanged"
)

// ============================================================================
// Assistant Events
// ============================================================================

// AssistantReadyEvent is emitted when the host engine gains or loses agents.
type AssistantReadyEvent struct {
	Ready bool `json:"ready"`
}

func (e AssistantReadyEvent) EventName() string { return AssistantReady }

// ConversationUpsertEvent is emitted when a conversation is inserted or
// replaced in the store.
type ConversationUpsertEvent struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (e ConversationUpsertEvent) EventName() string { return ConversationUpsert }

// ConversationPageEvent is emitted after a page load (latest or previous).
type ConversationPageEvent struct {
	Prepended int  `json:"prepended"` // 0 for a latest-page load
	HasMore   bool `json:"has_more"`
}

func (e ConversationPageEvent) EventName() string { return ConversationPage }

// ConversationsResetEvent is emitted when the store is cleared.
type ConversationsResetEvent struct{}

func (e ConversationsResetEvent) EventName() string { return ConversationsReset }

// ThinkingChangedEvent is emitted when the engine starts or stops waiting on
// a conversation. ID is 0 when nothing is in flight.
type ThinkingChangedEvent struct {
	ID int64 `json:"id"`
}

func (e ThinkingChangedEvent) EventName() string { return ThinkingChanged }

// SubmittingChangedEvent is emitted around prompt submission.
type SubmittingChangedEvent struct {
	Submitting bool `json:"submitting"`
}

func (e SubmittingChangedEvent) EventName() string { return SubmittingChanged }

// ============================================================================
// Auth Events
// ============================================================================

// IdentityChangedEvent is emitted after the signed-in identity settles.
type IdentityChangedEvent struct {
	ID         string `json:"id"`
	Expiration *int64 `json:"expiration"`
}

func (e IdentityChangedEvent) EventName() string { return IdentityChanged }

// UserProfileChangedEvent is emitted when the cached user profile refreshes.
type UserProfileChangedEvent struct {
	UserID string `json:"user_id"`
}

func (e UserProfileChangedEvent) EventName() string { return UserProfileChanged }
