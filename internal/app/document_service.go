package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"pharmgpt/internal/ai"
	"pharmgpt/internal/model"
	"pharmgpt/internal/rag"
	"pharmgpt/internal/repository"
)

// Embedding providers commonly cap batch sizes, so chunks go up in groups.
const embeddingBatchSize = 32

const contentPreviewLen = 200

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentDuplicate = errors.New("document already uploaded to this conversation")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrUploadLimit       = errors.New("daily upload limit reached")
)

// UploadLimiter gates document ingestion per user per day.
type UploadLimiter interface {
	Allow(ctx context.Context, userID uint) (bool, error)
}

// DocumentService owns the ingest pipeline: extract, chunk, embed, store.
// Retrieval is scoped to a conversation so uploads in one chat never leak
// into another.
type DocumentService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	convRepo  *repository.ConversationRepository
	llmClient *ai.OpenAICompatibleClient
	embConfig ai.EmbeddingConfig
	splitter  *rag.Splitter
	limiter   UploadLimiter

	topK              int
	minSimilarity     float32
	contextCharBudget int
	maxFileSize       int64
}

type DocumentServiceConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	TopK              int
	MinSimilarity     float32
	ContextCharBudget int
	MaxFileSizeMB     int
}

type IngestInput struct {
	UserID         uint
	ConversationID uint
	Filename       string
	Data           []byte
}

type IngestResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
}

// SearchResult is one retrieval hit exposed through the API.
type SearchResult struct {
	DocumentID uint    `json:"document_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	convRepo *repository.ConversationRepository,
	llmClient *ai.OpenAICompatibleClient,
	embConfig ai.EmbeddingConfig,
	limiter UploadLimiter,
	cfg DocumentServiceConfig,
) *DocumentService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ContextCharBudget <= 0 {
		cfg.ContextCharBudget = 6000
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 10
	}
	return &DocumentService{
		docRepo:           docRepo,
		chunkRepo:         chunkRepo,
		convRepo:          convRepo,
		llmClient:         llmClient,
		embConfig:         embConfig,
		splitter:          rag.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		limiter:           limiter,
		topK:              cfg.TopK,
		minSimilarity:     cfg.MinSimilarity,
		contextCharBudget: cfg.ContextCharBudget,
		maxFileSize:       int64(cfg.MaxFileSizeMB) * 1024 * 1024,
	}
}

// Ingest runs the full pipeline for one uploaded file. Duplicate uploads of
// the same content into the same conversation are rejected.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.UserID == 0 || input.ConversationID == 0 || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}
	if int64(len(input.Data)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}
	fileType, err := rag.DetectFileType(filename)
	if err != nil {
		return nil, err
	}

	conversation, err := s.convRepo.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	text, err := rag.ExtractText(fileType, input.Data)
	if err != nil {
		return nil, err
	}

	// Hash is scoped to the conversation, so the same file can still be
	// uploaded to a different chat.
	contentHash := documentHash(input.ConversationID, filename, text)
	existing, err := s.docRepo.GetByHash(input.UserID, input.ConversationID, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDocumentDuplicate
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, rag.ErrNoText
	}

	// Charge the daily quota only once every rejection path is behind us,
	// so a refused upload never burns a slot.
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrUploadLimit
		}
	}

	doc := &model.Document{
		UserID:         input.UserID,
		ConversationID: input.ConversationID,
		Filename:       filename,
		ContentHash:    contentHash,
		FileType:       fileType,
		FileSize:       int64(len(input.Data)),
		ContentPreview: preview(text),
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	// On embedding failure the document row stays with is_processed=false,
	// so a retry can be detected and the upload is not silently lost.
	embeddings, err := s.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	docChunks := make([]model.DocumentChunk, len(chunks))
	for i := range chunks {
		vec := pgvector.NewVector(embeddings[i])
		docChunks[i] = model.DocumentChunk{
			DocumentID:     doc.ID,
			UserID:         input.UserID,
			ConversationID: input.ConversationID,
			ChunkIndex:     i,
			Content:        chunks[i],
			Embedding:      &vec,
			Filename:       filename,
			FileType:       fileType,
		}
	}
	if err := s.chunkRepo.CreateBatch(docChunks); err != nil {
		return nil, err
	}
	if err := s.docRepo.SetProcessed(doc.ID, len(docChunks)); err != nil {
		return nil, err
	}
	doc.IsProcessed = true
	doc.ChunkCount = len(docChunks)

	return &IngestResult{Document: *doc, ChunkCount: len(docChunks)}, nil
}

func (s *DocumentService) List(userID, conversationID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if conversationID != 0 {
		return s.docRepo.ListByConversation(userID, conversationID)
	}
	return s.docRepo.ListByUserID(userID, 0)
}

func (s *DocumentService) Delete(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	return s.docRepo.DeleteByIDAndUserID(doc.ID, userID)
}

// DeleteByConversation removes every document and chunk for a conversation.
// Called when the conversation itself is deleted.
func (s *DocumentService) DeleteByConversation(userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	if err := s.chunkRepo.DeleteByConversation(userID, conversationID); err != nil {
		return err
	}
	return s.docRepo.DeleteByConversation(userID, conversationID)
}

// Search embeds the query and returns the nearest chunks above the
// similarity floor. conversationID 0 searches across every document the
// user owns.
func (s *DocumentService) Search(ctx context.Context, userID, conversationID uint, query string, topK int) ([]SearchResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	if topK <= 0 {
		topK = s.topK
	}

	var (
		count int64
		err   error
	)
	if conversationID == 0 {
		count, err = s.docRepo.CountByUserID(userID)
	} else {
		count, err = s.docRepo.CountByConversation(userID, conversationID)
	}
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []SearchResult{}, nil
	}

	queryEmb, err := s.llmClient.Embed(ctx, s.embConfig, query)
	if err != nil {
		return nil, err
	}
	var hits []repository.ScoredChunk
	if conversationID == 0 {
		hits, err = s.chunkRepo.SearchByUser(userID, queryEmb, topK)
	} else {
		hits, err = s.chunkRepo.SearchByConversation(userID, conversationID, queryEmb, topK)
	}
	if err != nil {
		return nil, err
	}

	return filterBySimilarity(hits, s.minSimilarity), nil
}

// filterBySimilarity drops hits below the floor, keeping the store's
// nearest-first ordering.
func filterBySimilarity(hits []repository.ScoredChunk, floor float32) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < floor {
			continue
		}
		results = append(results, SearchResult{
			DocumentID: hit.DocumentID,
			Filename:   hit.Filename,
			Content:    hit.Content,
			Similarity: hit.Similarity,
		})
	}
	return results
}

// ContextForQuery formats retrieval hits into the prompt context block,
// attributing each chunk to its source file and stopping at the char budget.
func (s *DocumentService) ContextForQuery(ctx context.Context, userID, conversationID uint, query string) (string, error) {
	results, err := s.Search(ctx, userID, conversationID, query, s.topK)
	if err != nil {
		return "", err
	}
	return assembleContext(results, s.contextCharBudget), nil
}

// assembleContext attributes each hit to its source file and stops adding
// parts once the char budget is spent. The first hit always goes in, even
// when it alone exceeds the budget, so the model never sees an empty
// context for a non-empty result set.
func assembleContext(results []SearchResult, budget int) string {
	if len(results) == 0 {
		return ""
	}

	var parts []string
	used := 0
	for _, r := range results {
		part := fmt.Sprintf("From %s:\n%s", r.Filename, r.Content)
		if used+len(part) > budget && len(parts) > 0 {
			break
		}
		parts = append(parts, part)
		used += len(part) + 2
	}
	return strings.Join(parts, "\n\n")
}

// DocumentStats summarizes a document library: totals plus a per-file-type
// breakdown.
type DocumentStats struct {
	TotalDocuments     int64                    `json:"total_documents"`
	TotalSizeBytes     int64                    `json:"total_size_bytes"`
	TotalChunks        int64                    `json:"total_chunks"`
	ProcessedDocuments int64                    `json:"processed_documents"`
	FileTypes          map[string]FileTypeStats `json:"file_types"`
}

type FileTypeStats struct {
	Count     int64 `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

// Stats rolls up the user's documents. conversationID 0 covers every
// conversation.
func (s *DocumentService) Stats(userID, conversationID uint) (*DocumentStats, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	rows, err := s.docRepo.AggregateStats(userID, conversationID)
	if err != nil {
		return nil, err
	}

	stats := &DocumentStats{FileTypes: make(map[string]FileTypeStats)}
	for _, row := range rows {
		stats.TotalDocuments += row.Count
		stats.TotalSizeBytes += row.SizeBytes
		stats.TotalChunks += row.Chunks
		stats.ProcessedDocuments += row.Processed
		stats.FileTypes[row.FileType] = FileTypeStats{
			Count:     row.Count,
			SizeBytes: row.SizeBytes,
		}
	}
	return stats, nil
}

func (s *DocumentService) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	var embeddings [][]float32
	for i := 0; i < len(chunks); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.llmClient.EmbedBatch(ctx, s.embConfig, chunks[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(chunks) {
		return nil, errors.New("embedding count mismatch")
	}
	return embeddings, nil
}

func documentHash(conversationID uint, filename, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d_%s_%s", conversationID, filename, content)))
	return hex.EncodeToString(sum[:])
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= contentPreviewLen {
		return text
	}
	return string(runes[:contentPreviewLen]) + "..."
}
