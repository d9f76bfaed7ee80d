package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexcodex/adpilot/framework"
)

// MemoryStore keeps everything in process memory behind one mutex. It backs
// unit tests and the demo CLI; the SQLite store is the durable twin.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*framework.Conversation
	messages      map[string][]framework.ChatMessage
	drafts        map[string]*framework.AdDraft
	activity      map[string]framework.ActivityEntry
	activityOrder []string
	workspaces    map[string]*framework.WorkspaceSettings
	pages         map[string]*framework.PageSettings
	products      map[string]*framework.Product
	winners       map[string][]framework.PastWinner
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*framework.Conversation),
		messages:      make(map[string][]framework.ChatMessage),
		drafts:        make(map[string]*framework.AdDraft),
		activity:      make(map[string]framework.ActivityEntry),
		workspaces:    make(map[string]*framework.WorkspaceSettings),
		pages:         make(map[string]*framework.PageSettings),
		products:      make(map[string]*framework.Product),
		winners:       make(map[string][]framework.PastWinner),
	}
}

// Conversation returns the record by id.
func (s *MemoryStore) Conversation(_ context.Context, id string) (*framework.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, framework.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

// GetOrCreateConversation returns the single conversation for the scope key,
// creating it on first use.
func (s *MemoryStore) GetOrCreateConversation(_ context.Context, workspaceID, pageID string, scope framework.Scope, title string) (*framework.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.WorkspaceID == workspaceID && conv.PageID == pageID && conv.Scope == scope && !conv.Archived {
			copied := *conv
			return &copied, nil
		}
	}
	now := time.Now().UTC()
	conv := &framework.Conversation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		PageID:      pageID,
		Scope:       scope,
		Title:       title,
		State:       framework.StateIdle,
		Context:     make(map[string]interface{}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.conversations[conv.ID] = conv
	copied := *conv
	return &copied, nil
}

// SaveConversation upserts the record.
func (s *MemoryStore) SaveConversation(_ context.Context, conv *framework.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.UpdatedAt = time.Now().UTC()
	copied := *conv
	s.conversations[conv.ID] = &copied
	return nil
}

// ListConversations returns every conversation in the workspace.
func (s *MemoryStore) ListConversations(_ context.Context, workspaceID string) ([]*framework.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*framework.Conversation
	for _, conv := range s.conversations {
		if conv.WorkspaceID == workspaceID {
			copied := *conv
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LegacyConversations returns unarchived legacy-scope conversations.
func (s *MemoryStore) LegacyConversations(_ context.Context, workspaceID string) ([]*framework.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*framework.Conversation
	for _, conv := range s.conversations {
		if conv.WorkspaceID == workspaceID && conv.Scope == framework.ScopeLegacyArchived && !conv.Archived {
			copied := *conv
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendMessage assigns the next sequence number and stores the message.
func (s *MemoryStore) AppendMessage(_ context.Context, msg *framework.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Seq = int64(len(s.messages[msg.ConversationID])) + 1
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// Messages returns the most recent messages in chronological order.
func (s *MemoryStore) Messages(_ context.Context, conversationID string, limit int) ([]framework.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]framework.ChatMessage, len(all))
	copy(out, all)
	return out, nil
}

// LastUserMessage returns the newest user-authored message, if any.
func (s *MemoryStore) LastUserMessage(_ context.Context, conversationID string) (*framework.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Role == framework.RoleUser {
			copied := all[i]
			return &copied, nil
		}
	}
	return nil, framework.ErrNotFound
}

// SaveDraft upserts a draft record.
func (s *MemoryStore) SaveDraft(_ context.Context, draft *framework.AdDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	copied := *draft
	s.drafts[draft.ID] = &copied
	return nil
}

// Draft returns a draft by id.
func (s *MemoryStore) Draft(_ context.Context, id string) (*framework.AdDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[id]
	if !ok {
		return nil, framework.ErrNotFound
	}
	copied := *draft
	return &copied, nil
}

// LatestDraft returns the newest draft in the conversation.
func (s *MemoryStore) LatestDraft(ctx context.Context, conversationID string) (*framework.AdDraft, error) {
	drafts, err := s.Drafts(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, framework.ErrNotFound
	}
	return drafts[len(drafts)-1], nil
}

// Drafts returns all drafts for the conversation, oldest first.
func (s *MemoryStore) Drafts(_ context.Context, conversationID string) ([]*framework.AdDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*framework.AdDraft
	for _, draft := range s.drafts {
		if draft.ConversationID == conversationID {
			copied := *draft
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].VariantNumber < out[j].VariantNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Record appends one activity entry. Duplicate keys are rejected, not
// doubled.
func (s *MemoryStore) Record(_ context.Context, entry framework.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, exists := s.activity[entry.ID]; exists {
		return framework.ErrDuplicateEntry
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.activity[entry.ID] = entry
	s.activityOrder = append(s.activityOrder, entry.ID)
	return nil
}

// Entries returns the activity log for a conversation in append order.
func (s *MemoryStore) Entries(_ context.Context, conversationID string) ([]framework.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []framework.ActivityEntry
	for _, id := range s.activityOrder {
		entry := s.activity[id]
		if conversationID == "" || entry.ConversationID == conversationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Workspace returns workspace settings by id.
func (s *MemoryStore) Workspace(_ context.Context, id string) (*framework.WorkspaceSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, framework.ErrNotFound
	}
	copied := *ws
	return &copied, nil
}

// SaveWorkspace upserts workspace settings.
func (s *MemoryStore) SaveWorkspace(_ context.Context, ws *framework.WorkspaceSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ws
	s.workspaces[ws.ID] = &copied
	return nil
}

// Page returns page settings by id.
func (s *MemoryStore) Page(_ context.Context, id string) (*framework.PageSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return nil, framework.ErrNotFound
	}
	copied := *page
	return &copied, nil
}

// Pages returns every page in the workspace.
func (s *MemoryStore) Pages(_ context.Context, workspaceID string) ([]framework.PageSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []framework.PageSettings
	for _, page := range s.pages {
		if page.WorkspaceID == workspaceID {
			out = append(out, *page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SavePage upserts page settings.
func (s *MemoryStore) SavePage(_ context.Context, page *framework.PageSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *page
	s.pages[page.ID] = &copied
	return nil
}

// Product returns a product by id.
func (s *MemoryStore) Product(_ context.Context, id string) (*framework.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, framework.ErrNotFound
	}
	copied := *product
	return &copied, nil
}

// ProductsForPage returns active products tagged to the page.
func (s *MemoryStore) ProductsForPage(_ context.Context, pageID string) ([]framework.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []framework.Product
	for _, product := range s.products {
		if !product.Active {
			continue
		}
		for _, id := range product.PageIDs {
			if id == pageID {
				out = append(out, *product)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveProduct upserts a product.
func (s *MemoryStore) SaveProduct(_ context.Context, product *framework.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *product
	s.products[product.ID] = &copied
	return nil
}

// PastWinners returns recorded winners for the page, newest first.
func (s *MemoryStore) PastWinners(_ context.Context, pageID string, limit int) ([]framework.PastWinner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	winners := s.winners[pageID]
	out := make([]framework.PastWinner, len(winners))
	copy(out, winners)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SavePastWinner appends a winner record for the page.
func (s *MemoryStore) SavePastWinner(_ context.Context, winner *framework.PastWinner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if winner.ID == "" {
		winner.ID = uuid.NewString()
	}
	if winner.CreatedAt.IsZero() {
		winner.CreatedAt = time.Now().UTC()
	}
	s.winners[winner.PageID] = append(s.winners[winner.PageID], *winner)
	return nil
}
