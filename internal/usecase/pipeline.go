package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/config"
	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
	"docqa/internal/port"
	"github.com/google/uuid"
)

// Params are the tuning knobs a pipeline runs with.
type Params struct {
	TopK                int
	MMRLambda           float64
	Overfetch           int
	ConfidenceThreshold float64
	MaxTokens           int
	Temperature         float64
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		TopK:                cfg.Retrieve.TopK,
		MMRLambda:           cfg.Retrieve.MMRLambda,
		Overfetch:           cfg.Retrieve.Overfetch,
		ConfidenceThreshold: cfg.Answer.ConfidenceThreshold,
		MaxTokens:           cfg.Answer.MaxTokens,
		Temperature:         cfg.Answer.Temperature,
	}
}

func (p Params) validate() error {
	if p.TopK < 1 {
		return fmt.Errorf("%w: top_k_retrieval must be at least 1", domain.ErrConfiguration)
	}
	if p.MMRLambda < 0 || p.MMRLambda > 1 {
		return fmt.Errorf("%w: mmr_lambda must be within [0, 1]", domain.ErrConfiguration)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be within [0, 1]", domain.ErrConfiguration)
	}
	return nil
}

// Deps are the collaborators a pipeline is wired with. Memory is optional.
// Extractor is only needed by IngestFile.
type Deps struct {
	Chunker   port.Chunker
	Gateway   *retriever.Gateway
	LLM       port.LLM
	Documents port.DocumentStore
	Extractor port.TextExtractor
	Memory    *ConversationMemory
	Logger    *slog.Logger
}

// Pipeline sequences ingestion and query answering. It owns configuration
// and collaborator handles only; every query carries its own state.
type Pipeline struct {
	params   Params
	gateway  *retriever.Gateway
	ingest   *IngestUseCase
	retrieve *RetrieveUseCase
	answer   *AnswerUseCase
	docs     port.DocumentStore
	memory   *ConversationMemory
	logger   *slog.Logger
}

func NewPipeline(params Params, deps Deps) (*Pipeline, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if deps.Chunker == nil || deps.Gateway == nil || deps.Documents == nil {
		return nil, fmt.Errorf("%w: chunker, gateway and document store are required", domain.ErrConfiguration)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	answer, err := NewAnswerUseCase(deps.LLM, port.GenerateOptions{
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		params:   params,
		gateway:  deps.Gateway,
		ingest:   NewIngestUseCase(deps.Chunker, deps.Gateway, deps.Documents, deps.Extractor, logger),
		retrieve: NewRetrieveUseCase(deps.Gateway, params.Overfetch),
		answer:   answer,
		docs:     deps.Documents,
		memory:   deps.Memory,
		logger:   logger,
	}, nil
}

func (p *Pipeline) Params() Params {
	return p.params
}

// Ingestion exposes the ingest use case for batch and file operations.
func (p *Pipeline) Ingestion() *IngestUseCase {
	return p.ingest
}

// Ingest chunks and indexes page-tagged text.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (domain.IngestResult, error) {
	return p.ingest.Ingest(ctx, req)
}

// IngestFile extracts and ingests a document blob.
func (p *Pipeline) IngestFile(ctx context.Context, filename string, data []byte) (domain.IngestResult, error) {
	return p.ingest.IngestFile(ctx, filename, data)
}

// QueryRequest is one question. TopK and Lambda override the pipeline
// parameters when set.
type QueryRequest struct {
	Query          string
	ConversationID string
	TopK           int
	Lambda         *float64
}

// queryRun is the state of one query as it moves through the stages.
type queryRun struct {
	req        QueryRequest
	topK       int
	lambda     float64
	stages     []domain.Stage
	vector     []float32
	pool       []domain.Candidate
	candidates []domain.Candidate
	synthesis  SynthesisRequest
	draft      DraftAnswer
	answer     domain.Answer
}

func (r *queryRun) enter(stage domain.Stage) {
	r.stages = append(r.stages, stage)
}

// Query answers a question through Received, Embedded, Retrieved, Reranked,
// Generated, Gated and Done. A failing stage ends the run in Failed and the
// error is a *domain.PipelineError naming the stage.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (domain.Answer, error) {
	run := &queryRun{req: req, topK: p.params.TopK, lambda: p.params.MMRLambda}
	if req.TopK > 0 {
		run.topK = req.TopK
	}
	if req.Lambda != nil {
		run.lambda = *req.Lambda
	}
	run.enter(domain.StageReceived)

	if err := p.received(ctx, run); err != nil {
		return p.fail(run, domain.StageReceived, err)
	}
	if run.answer.Outcome == domain.OutcomeNoDocuments {
		run.enter(domain.StageDone)
		run.answer.Stages = run.stages
		return run.answer, nil
	}

	steps := []struct {
		stage domain.Stage
		fn    func(context.Context, *queryRun) error
	}{
		{domain.StageEmbedded, p.embedded},
		{domain.StageRetrieved, p.retrieved},
		{domain.StageReranked, p.reranked},
		{domain.StageGenerated, p.generated},
		{domain.StageGated, p.gated},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return p.fail(run, step.stage, err)
		}
		if err := step.fn(ctx, run); err != nil {
			return p.fail(run, step.stage, err)
		}
		run.enter(step.stage)
	}

	p.remember(run)
	run.enter(domain.StageDone)
	run.answer.Stages = run.stages

	p.logger.Info("query answered",
		"outcome", run.answer.Outcome,
		"confidence", run.answer.Confidence,
		"retrieved", run.answer.RetrievedChunks,
		"citations", len(run.answer.Citations))
	return run.answer, nil
}

func (p *Pipeline) received(ctx context.Context, run *queryRun) error {
	run.req.Query = strings.TrimSpace(run.req.Query)
	if run.req.Query == "" {
		return fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if err := (Params{TopK: run.topK, MMRLambda: run.lambda}).validate(); err != nil {
		return err
	}
	if p.memory != nil && run.req.ConversationID == "" {
		run.req.ConversationID = uuid.NewString()
	}

	n, err := p.gateway.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		run.answer = domain.Answer{
			Text:           domain.FallbackAnswer,
			Citations:      []domain.Citation{},
			Outcome:        domain.OutcomeNoDocuments,
			ConversationID: run.req.ConversationID,
		}
	}
	return nil
}

func (p *Pipeline) embedded(ctx context.Context, run *queryRun) error {
	vector, err := p.gateway.EmbedQuery(ctx, run.req.Query)
	if err != nil {
		return err
	}
	run.vector = vector
	return nil
}

func (p *Pipeline) retrieved(ctx context.Context, run *queryRun) error {
	pool, err := p.retrieve.Candidates(ctx, run.vector, run.topK)
	if err != nil {
		return err
	}
	run.pool = pool
	return nil
}

func (p *Pipeline) reranked(_ context.Context, run *queryRun) error {
	candidates, err := p.retrieve.Rerank(run.pool, run.topK, run.lambda)
	if err != nil {
		return err
	}
	run.candidates = candidates
	return nil
}

func (p *Pipeline) generated(ctx context.Context, run *queryRun) error {
	run.synthesis = SynthesisRequest{
		Query:      run.req.Query,
		Candidates: run.candidates,
		Threshold:  p.params.ConfidenceThreshold,
	}
	if p.memory != nil {
		history, err := p.memory.Summary(run.req.ConversationID)
		if err != nil {
			p.logger.Warn("failed to load conversation history", "conversation", run.req.ConversationID, "error", err)
		}
		run.synthesis.History = history
	}

	draft, err := p.answer.Draft(ctx, run.synthesis)
	if err != nil {
		return err
	}
	run.draft = draft
	return nil
}

func (p *Pipeline) gated(_ context.Context, run *queryRun) error {
	run.answer = p.answer.Finalize(run.synthesis, run.draft)
	run.answer.ConversationID = run.req.ConversationID
	return nil
}

func (p *Pipeline) remember(run *queryRun) {
	if p.memory == nil {
		return
	}
	id := run.req.ConversationID
	if err := p.memory.Add(id, domain.Message{Role: domain.RoleUser, Content: run.req.Query}); err != nil {
		p.logger.Warn("failed to record message", "conversation", id, "error", err)
		return
	}
	err := p.memory.Add(id, domain.Message{
		Role:       domain.RoleAssistant,
		Content:    run.answer.Text,
		Confidence: run.answer.Confidence,
		Citations:  run.answer.Citations,
	})
	if err != nil {
		p.logger.Warn("failed to record message", "conversation", id, "error", err)
	}
}

func (p *Pipeline) fail(run *queryRun, stage domain.Stage, err error) (domain.Answer, error) {
	run.enter(domain.StageFailed)
	p.logger.Error("query failed", "stage", stage, "kind", domain.Kind(err), "error", err)
	return domain.Answer{Stages: run.stages, ConversationID: run.req.ConversationID},
		&domain.PipelineError{Stage: stage, Err: err}
}

// Search returns the re-ranked candidates for a query without generating.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = p.params.TopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	return p.retrieve.Retrieve(ctx, query, topK, p.params.MMRLambda)
}

// SearchWithoutMMR returns the raw similarity ranking.
func (p *Pipeline) SearchWithoutMMR(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = p.params.TopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	return p.retrieve.RetrieveWithoutMMR(ctx, query, topK)
}

func (p *Pipeline) Health(ctx context.Context) domain.Health {
	return p.gateway.Health(ctx)
}

func (p *Pipeline) Documents() ([]domain.DocumentRecord, error) {
	return p.docs.ListDocuments()
}

func (p *Pipeline) DeleteDocument(ctx context.Context, name string) error {
	return p.ingest.Delete(ctx, name)
}

// Rebuild re-ingests every stored document with the current chunker and
// embedder.
func (p *Pipeline) Rebuild(ctx context.Context, onDoc func(name string, err error)) (*BatchResult, error) {
	return p.ingest.Rebuild(ctx, onDoc)
}

// Memory returns the conversation memory, or nil when disabled.
func (p *Pipeline) Memory() *ConversationMemory {
	return p.memory
}
