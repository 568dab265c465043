package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/Extracta/internal/core/chunking"
	"github.com/markdave123-py/Extracta/internal/core/gpu"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	"github.com/markdave123-py/Extracta/internal/core/router"
	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
	"github.com/markdave123-py/Extracta/internal/logger"
)

// Guided-output schemas, reflected once.
var (
	entitiesSchema      = llm.MustSchemaFor(entitiesPayload{})
	relationshipsSchema = llm.MustSchemaFor(relationshipsPayload{})
)

// Options tunes one orchestrator instance.
type Options struct {
	ChunkStrategy string
	ChunkMaxSize  int
	ChunkOverlap  int
	// Estimator supplies the configured chars-per-token ratio to chunk
	// token counts; nil falls back to the default ratio.
	Estimator *tokenizer.Estimator
	// Concurrency bounds how many chunk pipelines run at once.
	Concurrency int64
	// DocumentTimeout bounds one Extract call; on expiry the partial
	// result gathered so far is returned, not an error.
	DocumentTimeout time.Duration
	// RelationshipContextChars caps the document excerpt handed to the
	// relationship wave, which sees the whole entity list anyway.
	RelationshipContextChars int
	// MemoryWait bounds how long a wave waits for accelerator memory
	// after an exhaustion error before giving up on the retry.
	MemoryWait time.Duration
}

func (o *Options) withDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.DocumentTimeout <= 0 {
		o.DocumentTimeout = 10 * time.Minute
	}
	if o.RelationshipContextChars <= 0 {
		o.RelationshipContextChars = 20000
	}
	if o.MemoryWait <= 0 {
		o.MemoryWait = 30 * time.Second
	}
}

// Result is everything one document's extraction produced.
type Result struct {
	DocumentID    string                  `json:"document_id"`
	Decision      router.Decision         `json:"decision"`
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
	Chunks        []chunking.Chunk        `json:"chunks,omitempty"`
	Diagnostics   []string                `json:"diagnostics,omitempty"`
}

// Orchestrator drives the pipeline: route, chunk, run waves, merge,
// optionally extract relationships. Failures local to one wave or one
// chunk never abort the document; they surface in Result.Diagnostics.
type Orchestrator struct {
	client   llm.InferenceClient
	router   *router.Router
	matcher  Matcher
	embedder chunking.Embedder
	monitor  *gpu.Monitor
	log      logger.Logger
	opts     Options
}

// NewOrchestrator wires the pipeline. matcher, embedder and monitor are
// optional; a nil matcher skips the rule pass, a nil embedder degrades
// semantic chunking, a nil monitor skips memory-pressure waits.
func NewOrchestrator(client llm.InferenceClient, r *router.Router, matcher Matcher,
	embedder chunking.Embedder, monitor *gpu.Monitor, log logger.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = logger.Default()
	}
	opts.withDefaults()
	return &Orchestrator{
		client:   client,
		router:   r,
		matcher:  matcher,
		embedder: embedder,
		monitor:  monitor,
		log:      log,
		opts:     opts,
	}
}

// collector gathers wave output from concurrent chunk pipelines. Merge
// order does not matter: identity is content-derived.
type collector struct {
	mu          sync.Mutex
	entities    []ExtractedEntity
	diagnostics []string
}

func (c *collector) add(entities []ExtractedEntity) {
	c.mu.Lock()
	c.entities = append(c.entities, entities...)
	c.mu.Unlock()
}

func (c *collector) diag(format string, args ...any) {
	c.mu.Lock()
	c.diagnostics = append(c.diagnostics, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}

// Extract runs the full pipeline for one document. It returns an error
// only for configuration problems; model, transport, and parse failures
// are reported through Result.Diagnostics with whatever entities were
// gathered.
func (o *Orchestrator) Extract(ctx context.Context, documentID, text string, ropts router.Options) (*Result, error) {
	decision := o.router.Route(text, ropts)
	o.log.Info("routing decision",
		"document", documentID,
		"strategy", decision.Strategy,
		"estimated_tokens", decision.EstimatedTokens,
		"relationships", decision.Relationships,
		"rationale", decision.Rationale)

	ctx, cancel := context.WithTimeout(ctx, o.opts.DocumentTimeout)
	defer cancel()

	col := &collector{}
	if o.matcher != nil {
		col.add(o.matcher.Match(text))
	}

	// Units of work: the document's chunks, or the whole text when the
	// strategy is not chunked.
	type unit struct {
		chunkID string
		text    string
	}
	var units []unit
	var chunks []chunking.Chunk
	if decision.Chunked {
		engine, err := chunking.NewEngine(o.opts.ChunkStrategy, o.opts.ChunkMaxSize, o.opts.ChunkOverlap, o.opts.Estimator, o.embedder)
		if err != nil {
			return nil, fmt.Errorf("chunking engine: %w", err)
		}
		chunks, err = engine.Split(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("split document: %w", err)
		}
		for _, c := range chunks {
			units = append(units, unit{chunkID: chunking.ChunkID(documentID, c.Index), text: c.Text})
		}
	} else {
		units = append(units, unit{text: text})
	}

	waves := router.Waves(decision.Strategy)

	// Chunks run concurrently under the semaphore; waves inside one
	// chunk stay sequential so each prompt can carry prior findings.
	sem := semaphore.NewWeighted(o.opts.Concurrency)
	var wg sync.WaitGroup
	for _, u := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			col.diag("chunk %s: %v", u.chunkID, err)
			break
		}
		wg.Add(1)
		go func(u unit) {
			defer wg.Done()
			defer sem.Release(1)
			o.runWaves(ctx, u.chunkID, u.text, waves, col)
		}(u)
	}
	wg.Wait()

	entities := Dedup(col.entities)

	result := &Result{
		DocumentID:  documentID,
		Decision:    decision,
		Entities:    entities,
		Chunks:      chunks,
		Diagnostics: col.diagnostics,
	}

	if decision.Relationships && len(entities) > 0 {
		rels, err := o.relationshipWave(ctx, text, entities)
		if err != nil {
			// Non-fatal: the document still returns with entities.
			col.diag("relationship wave: %v", err)
			result.Diagnostics = col.diagnostics
		}
		result.Relationships = rels
	}

	if len(result.Entities) == 0 {
		o.log.Warn("extraction produced no entities", "document", documentID, "diagnostics", len(result.Diagnostics))
	}
	return result, nil
}

// runWaves executes the extraction waves for one unit of text.
func (o *Orchestrator) runWaves(ctx context.Context, chunkID, text string, waves []string, col *collector) {
	var known []ExtractedEntity
	for _, wave := range waves {
		req := llm.Request{
			Messages: []llm.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: buildWavePrompt(wave, text, known)},
			},
			Schema:     entitiesSchema,
			SchemaName: "entities",
			Backend:    llm.BackendExtraction,
		}

		resp, err := o.complete(ctx, req)
		if err != nil {
			col.diag("chunk %s wave %s: %v", chunkID, wave, err)
			continue
		}

		entities, err := parseEntityResponse(resp.Content, wave)
		if err != nil {
			// Hard parse failure counts as a zero-entity wave, flagged.
			col.diag("chunk %s: %v", chunkID, err)
			continue
		}
		if chunkID != "" {
			for i := range entities {
				entities[i].ChunkIDs = []string{chunkID}
			}
		}
		col.add(entities)
		known = append(known, entities...)
	}
}

// complete issues one request, waiting out accelerator memory pressure
// once when a monitor is wired.
func (o *Orchestrator) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := o.client.Complete(ctx, req)
	var oom *llm.MemoryExhaustionError
	if err != nil && errors.As(err, &oom) && o.monitor != nil {
		o.log.Warn("accelerator memory exhausted, waiting", "backend", oom.Backend)
		if o.monitor.WaitForMemory(ctx, 1, o.opts.MemoryWait) {
			return o.client.Complete(ctx, req)
		}
	}
	return resp, err
}

// relationshipWave asks the reasoning backend to connect the
// deduplicated entities, then resolves the returned surface text back to
// entity IDs. Unresolvable endpoints drop the relationship.
func (o *Orchestrator) relationshipWave(ctx context.Context, text string, entities []ExtractedEntity) ([]ExtractedRelationship, error) {
	excerpt := text
	if runes := []rune(text); len(runes) > o.opts.RelationshipContextChars {
		excerpt = string(runes[:o.opts.RelationshipContextChars])
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildRelationshipPrompt(excerpt, entities)},
		},
		Schema:     relationshipsSchema,
		SchemaName: "relationships",
		Backend:    llm.BackendReasoning,
	}
	resp, err := o.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := parseRelationshipResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	byText := make(map[string]string, len(entities))
	for _, e := range entities {
		byText[NormalizeText(e.Text)] = e.ID
	}

	var out []ExtractedRelationship
	for _, item := range items {
		src, okSrc := byText[NormalizeText(item.Source)]
		dst, okDst := byText[NormalizeText(item.Target)]
		if !okSrc || !okDst || item.Label == "" {
			continue
		}
		out = append(out, ExtractedRelationship{
			SourceID:   src,
			TargetID:   dst,
			Label:      item.Label,
			Confidence: clampConfidence(item.Confidence),
		})
	}
	return out, nil
}
