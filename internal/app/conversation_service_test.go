package app

import (
	"fmt"
	"strings"
	"testing"

	"pharmgpt/internal/model"
)

// Cap the paged list the way the real repository does, so tests catch code
// that fetches a full conversation through the paged path.
const fakeListCap = 200

type fakeConversationStore struct {
	conversations map[uint]*model.Conversation
	nextID        uint
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{conversations: make(map[uint]*model.Conversation), nextID: 1}
}

func (f *fakeConversationStore) Create(conversation *model.Conversation) error {
	conversation.ID = f.nextID
	f.nextID++
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeConversationStore) ListByUserID(userID uint, includeArchived bool, limit int) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID && (includeArchived || !c.IsArchived) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) GetByIDAndUserID(conversationID, userID uint) (*model.Conversation, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *fakeConversationStore) UpdateTitle(conversationID, userID uint, title string) error {
	if c, _ := f.GetByIDAndUserID(conversationID, userID); c != nil {
		c.Title = title
	}
	return nil
}

func (f *fakeConversationStore) SetArchived(conversationID, userID uint, archived bool) error {
	if c, _ := f.GetByIDAndUserID(conversationID, userID); c != nil {
		c.IsArchived = archived
	}
	return nil
}

func (f *fakeConversationStore) DeleteByIDAndUserID(conversationID, userID uint) error {
	delete(f.conversations, conversationID)
	return nil
}

type fakeMessageStore struct {
	messages map[uint][]model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[uint][]model.Message)}
}

func (f *fakeMessageStore) CreateBatch(messages []model.Message) error {
	for _, m := range messages {
		f.messages[m.ConversationID] = append(f.messages[m.ConversationID], m)
	}
	return nil
}

func (f *fakeMessageStore) ListByConversationID(conversationID uint, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > fakeListCap {
		limit = fakeListCap
	}
	all := f.messages[conversationID]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeMessageStore) ListAllByConversationID(conversationID uint) ([]model.Message, error) {
	return f.messages[conversationID], nil
}

func (f *fakeMessageStore) ListRecentByConversationID(conversationID uint, n int) ([]model.Message, error) {
	all := f.messages[conversationID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (f *fakeMessageStore) DeleteByConversationID(conversationID uint) error {
	delete(f.messages, conversationID)
	return nil
}

func seedConversation(t *testing.T, convs *fakeConversationStore, msgs *fakeMessageStore, userID uint, n int) uint {
	t.Helper()
	conversation := &model.Conversation{UserID: userID, Title: "Anticoagulants"}
	if err := convs.Create(conversation); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	batch := make([]model.Message, n)
	for i := range batch {
		batch[i] = model.Message{
			ConversationID: conversation.ID,
			UserID:         userID,
			Role:           "user",
			Content:        fmt.Sprintf("message %d", i),
		}
	}
	if err := msgs.CreateBatch(batch); err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	return conversation.ID
}

func TestDuplicateCopiesLongConversations(t *testing.T) {
	convs := newFakeConversationStore()
	msgs := newFakeMessageStore()
	svc := NewConversationService(convs, msgs, nil, nil, nil, nil, nil, 0)

	const total = fakeListCap + 150
	conversationID := seedConversation(t, convs, msgs, 7, total)

	copied, err := svc.Duplicate(7, conversationID)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}
	got := msgs.messages[copied.ID]
	if len(got) != total {
		t.Fatalf("duplicate has %d messages, want %d", len(got), total)
	}
	if got[total-1].Content != fmt.Sprintf("message %d", total-1) {
		t.Fatalf("last duplicated message = %q", got[total-1].Content)
	}
}

func TestGetFullHistoryReturnsEverything(t *testing.T) {
	convs := newFakeConversationStore()
	msgs := newFakeMessageStore()
	svc := NewConversationService(convs, msgs, nil, nil, nil, nil, nil, 0)

	const total = fakeListCap + 50
	conversationID := seedConversation(t, convs, msgs, 7, total)

	history, err := svc.GetFullHistory(7, conversationID)
	if err != nil {
		t.Fatalf("GetFullHistory() error = %v", err)
	}
	if len(history) != total {
		t.Fatalf("full history has %d messages, want %d", len(history), total)
	}

	if _, err := svc.GetFullHistory(8, conversationID); err != ErrConversationNotFound {
		t.Fatalf("GetFullHistory() for another user = %v, want ErrConversationNotFound", err)
	}
}

func TestAutoTitle(t *testing.T) {
	if got := autoTitle("What is warfarin?"); got != "What is warfarin?" {
		t.Fatalf("autoTitle() = %q", got)
	}

	long := strings.Repeat("pharmacodynamics ", 10)
	got := autoTitle(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long title not truncated: %q", got)
	}
	if n := len([]rune(got)); n > autoTitleMaxLen+3 {
		t.Fatalf("title has %d runes, want at most %d", n, autoTitleMaxLen+3)
	}

	if got := autoTitle("line\none\ttwo"); strings.ContainsAny(got, "\n\t") {
		t.Fatalf("autoTitle kept whitespace runs: %q", got)
	}
}

func TestTrimMessages(t *testing.T) {
	messages := []model.Message{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}

	if got := trimMessages(messages, 0); len(got) != 3 {
		t.Fatalf("trimMessages(0) = %d messages, want all", len(got))
	}
	if got := trimMessages(messages, 5); len(got) != 3 {
		t.Fatalf("trimMessages(5) = %d messages, want all", len(got))
	}

	got := trimMessages(messages, 2)
	if len(got) != 2 || got[0].Content != "b" || got[1].Content != "c" {
		t.Fatalf("trimMessages(2) = %+v, want last two", got)
	}
}
