package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"pharmgpt/internal/ai"
	"pharmgpt/internal/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrLLMConfig            = errors.New("llm config is invalid")
	ErrMessageEnqueue       = errors.New("message enqueue failed")
	ErrUnknownMode          = errors.New("unknown model mode")
)

const defaultConversationTitle = "New Conversation"

// autoTitleMaxLen caps titles derived from the first user message.
const autoTitleMaxLen = 50

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

// DocumentContextProvider supplies retrieval context for a chat turn. An
// empty string means nothing relevant was found.
type DocumentContextProvider interface {
	ContextForQuery(ctx context.Context, userID, conversationID uint, query string) (string, error)
}

// DocumentCleanup removes a conversation's documents and chunks when the
// conversation is deleted.
type DocumentCleanup interface {
	DeleteByConversation(userID, conversationID uint) error
}

// ModeResolver maps a model mode name ("normal", "turbo", "premium") to a
// provider endpoint. Empty name resolves the default mode.
type ModeResolver func(name string) (ai.ChatConfig, error)

// ConversationStore is the conversation persistence surface the service
// needs, satisfied by repository.ConversationRepository.
type ConversationStore interface {
	Create(conversation *model.Conversation) error
	ListByUserID(userID uint, includeArchived bool, limit int) ([]model.Conversation, error)
	GetByIDAndUserID(conversationID, userID uint) (*model.Conversation, error)
	UpdateTitle(conversationID, userID uint, title string) error
	SetArchived(conversationID, userID uint, archived bool) error
	DeleteByIDAndUserID(conversationID, userID uint) error
}

// MessageStore is the message persistence surface the service needs,
// satisfied by repository.MessageRepository.
type MessageStore interface {
	CreateBatch(messages []model.Message) error
	ListByConversationID(conversationID uint, limit int) ([]model.Message, error)
	ListAllByConversationID(conversationID uint) ([]model.Message, error)
	ListRecentByConversationID(conversationID uint, n int) ([]model.Message, error)
	DeleteByConversationID(conversationID uint) error
}

type ConversationService struct {
	convRepo     ConversationStore
	messageRepo  MessageStore
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	docContext   DocumentContextProvider
	docCleanup   DocumentCleanup
	llmClient    *ai.OpenAICompatibleClient
	resolveMode  ModeResolver
	maxContext   int
}

type CreateConversationInput struct {
	UserID    uint
	Title     string
	ModelMode string
}

type SendMessageInput struct {
	UserID         uint
	ConversationID uint
	Content        string
	ModelMode      string // overrides the conversation's stored mode
}

type SendMessageResult struct {
	Messages []model.Message `json:"messages"`
	Model    string          `json:"model"`
}

func NewConversationService(
	convRepo ConversationStore,
	messageRepo MessageStore,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	docContext DocumentContextProvider,
	llmClient *ai.OpenAICompatibleClient,
	resolveMode ModeResolver,
	maxContext int,
) *ConversationService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ConversationService{
		convRepo:     convRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		docContext:   docContext,
		llmClient:    llmClient,
		resolveMode:  resolveMode,
		maxContext:   maxContext,
	}
}

func (s *ConversationService) Create(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultConversationTitle
	}
	mode := strings.TrimSpace(input.ModelMode)
	if mode != "" {
		if _, err := s.resolveMode(mode); err != nil {
			return nil, ErrUnknownMode
		}
	}

	conversation := &model.Conversation{
		UserID:    input.UserID,
		Title:     title,
		ModelMode: mode,
	}
	if err := s.convRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ConversationService) List(userID uint, includeArchived bool, limit int) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.convRepo.ListByUserID(userID, includeArchived, limit)
}

func (s *ConversationService) Get(userID, conversationID uint) (*model.Conversation, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}
	conversation, err := s.convRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *ConversationService) Rename(userID, conversationID uint, title string) error {
	title = strings.TrimSpace(title)
	if userID == 0 || conversationID == 0 || title == "" {
		return ErrInvalidInput
	}
	if _, err := s.Get(userID, conversationID); err != nil {
		return err
	}
	return s.convRepo.UpdateTitle(conversationID, userID, title)
}

func (s *ConversationService) SetArchived(userID, conversationID uint, archived bool) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	if _, err := s.Get(userID, conversationID); err != nil {
		return err
	}
	return s.convRepo.SetArchived(conversationID, userID, archived)
}

// Duplicate copies a conversation and its messages into a fresh one.
// Uploaded documents stay with the original.
func (s *ConversationService) Duplicate(userID, conversationID uint) (*model.Conversation, error) {
	original, err := s.Get(userID, conversationID)
	if err != nil {
		return nil, err
	}

	copied := &model.Conversation{
		UserID:    userID,
		Title:     "Copy of " + original.Title,
		ModelMode: original.ModelMode,
	}
	if err := s.convRepo.Create(copied); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListAllByConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		duplicated := make([]model.Message, len(messages))
		for i, m := range messages {
			duplicated[i] = model.Message{
				ConversationID: copied.ID,
				UserID:         m.UserID,
				Role:           m.Role,
				Content:        m.Content,
				CreatedAt:      m.CreatedAt,
			}
		}
		if err := s.messageRepo.CreateBatch(duplicated); err != nil {
			return nil, err
		}
	}
	return copied, nil
}

// SetDocumentCleanup wires document deletion into conversation deletion.
// Set after construction because the document service depends on the same
// repositories.
func (s *ConversationService) SetDocumentCleanup(cleanup DocumentCleanup) {
	s.docCleanup = cleanup
}

func (s *ConversationService) Delete(userID, conversationID uint) error {
	if _, err := s.Get(userID, conversationID); err != nil {
		return err
	}
	if err := s.messageRepo.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if s.docCleanup != nil {
		if err := s.docCleanup.DeleteByConversation(userID, conversationID); err != nil {
			return err
		}
	}
	if err := s.convRepo.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), conversationID)
	}
	return nil
}

func (s *ConversationService) GetHistory(userID, conversationID uint, limit int) ([]model.Message, error) {
	if _, err := s.Get(userID, conversationID); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

// GetFullHistory returns every message of the conversation, bypassing the
// cache and the listing row cap. Export and duplication need the whole
// thing, not a page.
func (s *ConversationService) GetFullHistory(userID, conversationID uint) ([]model.Message, error) {
	if _, err := s.Get(userID, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListAllByConversationID(conversationID)
}

func (s *ConversationService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	turn, err := s.prepareTurn(ctx, input)
	if err != nil {
		return nil, err
	}

	assistantContent, err := s.llmClient.Complete(ctx, turn.cfg, turn.prompt)
	if err != nil {
		return nil, err
	}
	assistantContent = strings.TrimSpace(assistantContent)
	if assistantContent == "" {
		assistantContent = "The model returned an empty response."
	}

	assistantMessage := model.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "assistant",
		Content:        assistantContent,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	return &SendMessageResult{
		Messages: []model.Message{turn.userMessage, assistantMessage},
		Model:    turn.cfg.Model,
	}, nil
}

// StreamMessage behaves like SendMessage but forwards completion chunks to
// onChunk as they arrive. Returns the full assistant reply.
func (s *ConversationService) StreamMessage(
	ctx context.Context,
	input SendMessageInput,
	onChunk func(string) error,
) (string, error) {
	turn, err := s.prepareTurn(ctx, input)
	if err != nil {
		return "", err
	}

	full, err := s.llmClient.StreamComplete(ctx, turn.cfg, turn.prompt, onChunk)
	if err != nil {
		return "", err
	}
	full = strings.TrimSpace(full)
	if full == "" {
		full = "The model returned an empty response."
	}

	assistantMessage := model.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "assistant",
		Content:        full,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return "", ErrMessageEnqueue
	}
	return full, nil
}

type chatTurn struct {
	cfg         ai.ChatConfig
	prompt      []ai.ChatMessage
	userMessage model.Message
}

// prepareTurn validates the request, builds the prompt (with document
// context when available), and enqueues the user message.
func (s *ConversationService) prepareTurn(ctx context.Context, input SendMessageInput) (*chatTurn, error) {
	if input.UserID == 0 || input.ConversationID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	conversation, err := s.Get(input.UserID, input.ConversationID)
	if err != nil {
		return nil, err
	}

	modeName := strings.TrimSpace(input.ModelMode)
	if modeName == "" {
		modeName = conversation.ModelMode
	}
	cfg, err := s.resolveMode(modeName)
	if err != nil {
		return nil, ErrUnknownMode
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Model == "" {
		return nil, ErrLLMConfig
	}

	prompt, err := s.buildPromptMessages(ctx, input.UserID, input.ConversationID, content)
	if err != nil {
		return nil, err
	}

	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}
	userMessage := model.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "user",
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, input.ConversationID)
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	if conversation.Title == defaultConversationTitle {
		_ = s.convRepo.UpdateTitle(input.ConversationID, input.UserID, autoTitle(content))
	}

	return &chatTurn{cfg: cfg, prompt: prompt, userMessage: userMessage}, nil
}

// buildPromptMessages assembles system prompt, recent history, and the
// current turn. When the conversation has indexed documents and retrieval
// finds relevant chunks, the final user turn becomes the RAG-enhanced prompt.
func (s *ConversationService) buildPromptMessages(ctx context.Context, userID, conversationID uint, currentUserInput string) ([]ai.ChatMessage, error) {
	recent, err := s.messageRepo.ListRecentByConversationID(conversationID, s.maxContext)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: ai.PharmacologySystemPrompt,
	})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{
			Role:    role,
			Content: item.Content,
		})
	}

	userTurn := currentUserInput
	if s.docContext != nil {
		docContext, err := s.docContext.ContextForQuery(ctx, userID, conversationID, currentUserInput)
		if err == nil && docContext != "" {
			userTurn = ai.RAGEnhancedPrompt(currentUserInput, docContext)
		}
	}
	messages = append(messages, ai.ChatMessage{
		Role:    "user",
		Content: userTurn,
	})
	return messages, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func autoTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) > autoTitleMaxLen {
		title = strings.TrimSpace(string(runes[:autoTitleMaxLen])) + "..."
	}
	return title
}
