package domain

import "time"

// FallbackAnswer is returned whenever the evidence is too weak to answer.
const FallbackAnswer = "insufficient information in the documents"

// Page is the text of one page of a source document.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is a source document as produced by text extraction.
type Document struct {
	Name  string
	Pages []Page
}

type Chunk struct {
	ID            string `json:"chunk_id"`
	DocumentName  string `json:"document_name"`
	PageNumber    int    `json:"page_number"`
	Text          string `json:"text"`
	TokenEstimate int    `json:"token_estimate"`
}

// Metadata returns the fixed-shape metadata stored with the chunk's vector.
func (c Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{
		DocumentName: c.DocumentName,
		PageNumber:   c.PageNumber,
		ChunkID:      c.ID,
	}
}

type ChunkMetadata struct {
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	ChunkID      string `json:"chunk_id"`
}

// EmbeddingRecord is a chunk plus its vector, as stored in the index.
type EmbeddingRecord struct {
	ChunkID  string
	Vector   []float32
	Metadata ChunkMetadata
	Text     string
}

// Candidate is a transient retrieval result. Score is normalized to [0, 1].
type Candidate struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Vector   []float32     `json:"-"`
}

type Citation struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	ChunkID  string `json:"chunk_id"`
}

// Outcome tells a caller which path produced an answer.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeInsufficient  Outcome = "insufficient_context"
	OutcomeNoEvidence    Outcome = "no_evidence"
	OutcomeNoDocuments   Outcome = "no_documents"
)

// Answer is the result of one query.
type Answer struct {
	Text            string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	Confidence      float64    `json:"confidence"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	Outcome         Outcome    `json:"outcome"`
	ConversationID  string     `json:"conversation_id,omitempty"`
	Stages          []Stage    `json:"stages,omitempty"`
}

// Grounded reports whether the answer carries generated text.
func (a Answer) Grounded() bool {
	return a.Outcome == OutcomeAnswered
}

type IngestResult struct {
	DocumentName      string   `json:"document_name"`
	ChunksCreated     int      `json:"chunks_created"`
	TotalTokens       int      `json:"total_tokens"`
	EmbeddingFailures []string `json:"embedding_failures,omitempty"`
}

// DocumentRecord is the registry entry kept for every ingested document.
type DocumentRecord struct {
	Name          string    `json:"name"`
	Pages         []Page    `json:"pages"`
	ChunkIDs      []string  `json:"chunk_ids"`
	Tokens        int       `json:"tokens"`
	IngestedAt    time.Time `json:"ingested_at"`
	SourcePath    string    `json:"source_path,omitempty"`
	SourceModTime int64     `json:"source_mod_time,omitempty"`
}

type Health struct {
	Status              string    `json:"status"`
	Timestamp           time.Time `json:"timestamp"`
	VectorDBReady       bool      `json:"vector_db_ready"`
	EmbeddingModelReady bool      `json:"embedding_model_ready"`
	IndexedChunks       int       `json:"indexed_chunks"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence float64    `json:"confidence,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
}

// Stage is a step of the query state machine.
type Stage string

const (
	StageReceived  Stage = "received"
	StageEmbedded  Stage = "embedded"
	StageRetrieved Stage = "retrieved"
	StageReranked  Stage = "reranked"
	StageGenerated Stage = "generated"
	StageGated     Stage = "gated"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Ingestion stages, used in PipelineError for ingest failures.
const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageIndex   Stage = "index"
)
