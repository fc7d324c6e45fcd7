package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitorsj/lawyerless/backend/model"
)

// PDFProcessor extracts text from an uploaded PDF.
type PDFProcessor interface {
	Extract(ctx context.Context, content []byte, filename string) (*model.ExtractionResult, error)
}

// ClauseSegmenter splits extracted text into clauses.
type ClauseSegmenter interface {
	Segment(extraction *model.ExtractionResult) ([]model.Clause, error)
}

// ContractExtractor builds the structured contract summary.
type ContractExtractor interface {
	ExtractSummary(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause) (model.ContractSummary, error)
}

// AnalysisAgent produces the per-clause risk analysis.
type AnalysisAgent interface {
	AnalyzeClauses(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause, summary model.ContractSummary, perspective string) ([]model.ClauseAnalysis, error)
}

// Submission is one accepted document handed to the pipeline.
type Submission struct {
	DocumentID  string
	Filename    string
	Content     []byte
	Perspective string
}

// Pipeline runs the four-stage contract analysis for submitted documents.
// Each submission runs on its own tracked goroutine; Shutdown drains
// in-flight runs at process teardown.
type Pipeline struct {
	processor PDFProcessor
	segmenter ClauseSegmenter
	extractor ContractExtractor
	agent     AnalysisAgent
	tracker   *Tracker
	store     Store

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPipeline wires the pipeline with its collaborators.
func NewPipeline(processor PDFProcessor, segmenter ClauseSegmenter, extractor ContractExtractor, agent AnalysisAgent, tracker *Tracker, store Store) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		processor: processor,
		segmenter: segmenter,
		extractor: extractor,
		agent:     agent,
		tracker:   tracker,
		store:     store,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Launch schedules a background run for the submission and returns
// immediately. The run is tracked so Shutdown can drain it.
func (p *Pipeline) Launch(sub Submission) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(p.baseCtx, sub)
	}()
}

// Shutdown waits for in-flight runs to finish. When ctx expires first, the
// remaining runs are cancelled and waited for; they record a failed status
// on their way out.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Wait blocks until all launched runs have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// run executes the stages in order, announcing each checkpoint through the
// tracker. A stage error is terminal: the job is marked failed and nothing
// is retried. When the tracker reports the job was deleted mid-flight, the
// run is abandoned and no further writes happen for that ID.
func (p *Pipeline) run(ctx context.Context, sub Submission) {
	id := sub.DocumentID

	if !p.tracker.Advance(id, model.StatusProcessing, 10, "Starting PDF processing...", "") {
		return
	}

	// Stage 1: text extraction
	extraction, err := p.processor.Extract(ctx, sub.Content, sub.Filename)
	if err != nil {
		p.fail(id, fmt.Errorf("pdf processing: %w", err))
		return
	}
	if !p.tracker.Advance(id, model.StatusProcessing, 30, "PDF processed. Segmenting clauses...", "") {
		return
	}

	// Stage 2: clause segmentation
	clauses, err := p.segmenter.Segment(extraction)
	if err != nil {
		p.fail(id, fmt.Errorf("clause segmentation: %w", err))
		return
	}
	msg := fmt.Sprintf("Identified %d clauses. Extracting contract data...", len(clauses))
	if !p.tracker.Advance(id, model.StatusProcessing, 50, msg, "") {
		return
	}

	// Stage 3: structured summary extraction
	summary, err := p.extractor.ExtractSummary(ctx, extraction, clauses)
	if err != nil {
		p.fail(id, fmt.Errorf("contract extraction: %w", err))
		return
	}
	if !p.tracker.Advance(id, model.StatusProcessing, 70, "Contract data extracted. Analyzing clauses with AI...", "") {
		return
	}

	// Stage 4: per-clause LLM analysis
	analyses, err := p.agent.AnalyzeClauses(ctx, extraction, clauses, summary, sub.Perspective)
	if err != nil {
		p.fail(id, fmt.Errorf("clause analysis: %w", err))
		return
	}

	result := &model.ContractAnalysisResponse{
		DocumentID:  id,
		Filename:    sub.Filename,
		Perspective: sub.Perspective,
		Summary:     summary,
		Clauses:     analyses,
		AnalyzedAt:  time.Now(),
	}
	if !p.store.PutResult(id, result) {
		// Job deleted while analyzing; discard the result.
		return
	}

	p.tracker.Advance(id, model.StatusCompleted, 100,
		fmt.Sprintf("Analysis complete! %d clauses analyzed.", len(analyses)), "")
}

func (p *Pipeline) fail(id string, err error) {
	p.tracker.Advance(id, model.StatusFailed, 0, "Analysis failed: "+err.Error(), err.Error())
}
