package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shiurlab/shiur-core/internal/chunker"
	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/core/ports/driving"
	"github.com/shiurlab/shiur-core/internal/prompts"
)

// Verify interface compliance
var _ driving.GuideService = (*GuideOrchestrator)(nil)

// GuideOrchestrator is the top of the pipeline: canonical cache with
// single-flight, per-corpus fetch strategies, parallel explanation,
// summarization and atomic persistence.
type GuideOrchestrator struct {
	guideStore  driven.GuideStore
	alignment   *AlignmentService
	explanation *ExplanationService
	summary     *SummaryService
	resolver    *RefResolver
	progress    driven.ProgressSink
	cancel      driven.CancelProbe
	cfg         *domain.RuntimeConfig
	logger      *slog.Logger
}

// GuideOrchestratorConfig holds dependencies for GuideOrchestrator.
type GuideOrchestratorConfig struct {
	GuideStore  driven.GuideStore
	Alignment   *AlignmentService
	Explanation *ExplanationService
	Summary     *SummaryService
	Resolver    *RefResolver
	Progress    driven.ProgressSink
	Cancel      driven.CancelProbe
	Runtime     *domain.RuntimeConfig
	Logger      *slog.Logger
}

// NewGuideOrchestrator creates a new guide orchestrator.
func NewGuideOrchestrator(cfg GuideOrchestratorConfig) *GuideOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = domain.NewRuntimeConfig()
	}
	return &GuideOrchestrator{
		guideStore:  cfg.GuideStore,
		alignment:   cfg.Alignment,
		explanation: cfg.Explanation,
		summary:     cfg.Summary,
		resolver:    cfg.Resolver,
		progress:    cfg.Progress,
		cancel:      cfg.Cancel,
		cfg:         runtime,
		logger:      logger,
	}
}

// Generate builds or serves the guide for a request. The GuideResult
// is the discriminated outcome; the error return is reserved for
// infrastructure failures that produced no outcome.
func (s *GuideOrchestrator) Generate(ctx context.Context, req domain.GuideRequest) (*domain.GuideResult, error) {
	if len(req.Corpora) == 0 {
		return &domain.GuideResult{Success: false, Error: domain.MsgNoSourcesSelected}, nil
	}
	if req.Paragraph <= 0 {
		return &domain.GuideResult{Success: false, Error: domain.MsgMissingIdentifiers}, nil
	}
	if err := req.Validate(); err != nil {
		return &domain.GuideResult{Success: false, Error: domain.MsgMissingIdentifiers}, nil
	}

	fingerprint := req.Fingerprint()
	for attempt := 0; attempt < 2; attempt++ {
		outcome, rec, err := s.guideStore.Begin(ctx, req, s.cfg.GuideStaleThreshold)
		if err != nil {
			return nil, fmt.Errorf("guide begin %s: %w", fingerprint, err)
		}
		switch outcome {
		case driven.BeginReady:
			return s.loadResult(ctx, rec)
		case driven.BeginAcquired:
			return s.run(ctx, req, fingerprint)
		case driven.BeginProcessing:
			ready, pollErr := s.pollReady(ctx, fingerprint)
			if pollErr != nil {
				return nil, pollErr
			}
			if ready != nil {
				return s.loadResult(ctx, ready)
			}
			// The concurrent build settled without a ready record (or
			// went stale); retry the lock once.
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGuideTimeout, fingerprint)
}

// loadResult serves a finished guide from the store.
func (s *GuideOrchestrator) loadResult(ctx context.Context, rec *domain.CanonicalGuideRecord) (*domain.GuideResult, error) {
	chunks, err := s.guideStore.GetChunks(ctx, rec.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load guide chunks %s: %w", rec.Fingerprint, err)
	}
	return &domain.GuideResult{Success: true, Guide: rec, Chunks: chunks}, nil
}

// pollReady waits on a concurrent builder: up to GuidePollAttempts
// polls at GuidePollInterval. Returns the ready record, or nil when
// the caller should retry the lock.
func (s *GuideOrchestrator) pollReady(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, error) {
	for attempt := 0; attempt < s.cfg.GuidePollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.GuidePollInterval):
		}
		rec, err := s.guideStore.Get(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("poll guide %s: %w", fingerprint, err)
		}
		switch rec.Status {
		case domain.GuideStatusReady:
			return rec, nil
		case domain.GuideStatusFailed:
			return nil, nil
		}
	}
	return nil, nil
}

// run executes the pipeline under a held processing lock and converts
// every failure into the discriminated outcome.
func (s *GuideOrchestrator) run(ctx context.Context, req domain.GuideRequest, fingerprint string) (*domain.GuideResult, error) {
	result, err := s.execute(ctx, req, fingerprint)
	if err != nil {
		s.logger.Error("guide generation failed",
			"component", "guide", "fingerprint", fingerprint, "error", err)
		if markErr := s.guideStore.MarkFailed(ctx, fingerprint, err.Error()); markErr != nil {
			s.logger.Error("mark guide failed errored",
				"component", "guide", "fingerprint", fingerprint, "error", markErr)
		}
		return &domain.GuideResult{Success: false, Error: localizeError(err)}, nil
	}
	return result, nil
}

// corpusSource is the fetched material of one requested corpus.
type corpusSource struct {
	corpus    domain.CorpusID
	fragments []domain.Fragment

	// refCanonical is the canonical provider ref of the fetch, used
	// for legacy cache keying.
	refCanonical string
}

// corpusOutcome is one corpus task's result.
type corpusOutcome struct {
	corpus    domain.CorpusID
	chunks    []domain.GuideChunk
	cancelled bool
	err       error
}

func (s *GuideOrchestrator) execute(ctx context.Context, req domain.GuideRequest, fingerprint string) (*domain.GuideResult, error) {
	loc := domain.Location{Section: req.Section, Chapter: req.Chapter, Paragraph: req.Paragraph}
	requested := make(map[domain.CorpusID]bool, len(req.Corpora))
	for _, c := range req.Corpora {
		requested[c] = true
	}

	// The later commentary is never an explanation target of its own:
	// it rides along as companion text for the primary.
	companionText := ""
	if requested[domain.CorpusMishnahBerurah] && domain.CorpusMishnahBerurah.AppliesTo(req.Section) {
		companionText = s.fetchCompanionText(ctx, loc)
	}

	sources := s.gatherSources(ctx, req, loc, requested)

	// Chunk with the explanation profile, capped per corpus.
	type chunkedSource struct {
		corpusSource
		chunks []domain.Chunk
	}
	var chunked []chunkedSource
	total := 0
	for _, src := range sources {
		ck := chunker.New(src.corpus, chunker.ExplanationProfile, s.logger)
		chunks := ck.ChunkAll(ctx, src.fragments, s.cfg.MaxChunksPerSource)
		if len(chunks) == 0 {
			continue
		}
		chunked = append(chunked, chunkedSource{corpusSource: src, chunks: chunks})
		total += len(chunks)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoContent, loc)
	}

	model := s.cfg.ModelForChunkCount(total)
	if err := s.progress.Init(ctx, fingerprint, total); err != nil {
		s.logger.Warn("progress init failed", "component", "guide", "fingerprint", fingerprint, "error", err)
	}

	// One task per corpus; chunks are sequential within a corpus so
	// each call carries the previous chunk's N-1 context.
	outcomes := make([]corpusOutcome, len(chunked))
	var wg sync.WaitGroup
	for i := range chunked {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			companion := ""
			if chunked[i].corpus == domain.CorpusShulchanArukh {
				companion = companionText
			}
			outcomes[i] = s.processCorpus(ctx, fingerprint, req, chunked[i].corpusSource, chunked[i].chunks, model, companion)
		}(i)
	}
	wg.Wait()

	var allChunks []domain.GuideChunk
	succeeded := 0
	for _, oc := range outcomes {
		if oc.cancelled {
			if err := s.guideStore.MarkFailed(ctx, fingerprint, "cancelled"); err != nil {
				s.logger.Error("mark cancelled failed", "component", "guide", "fingerprint", fingerprint, "error", err)
			}
			return &domain.GuideResult{Success: false, Cancelled: true, Error: domain.MsgCancelled}, nil
		}
		if oc.err != nil {
			s.logger.Warn("corpus task failed, continuing with fewer corpora",
				"component", "guide", "corpus", oc.corpus, "error", oc.err)
			continue
		}
		allChunks = append(allChunks, oc.chunks...)
		succeeded++
	}
	if succeeded == 0 || len(allChunks) == 0 {
		return nil, fmt.Errorf("%w: every corpus failed for %s", domain.ErrNoContent, loc)
	}

	// Assemble the combined text per corpus, in canonical order.
	var sections []prompts.SummarySection
	for _, corpus := range domain.AllCorpora() {
		var texts []string
		for _, c := range allChunks {
			if c.Corpus == corpus {
				texts = append(texts, c.ExplanationText)
			}
		}
		if len(texts) == 0 {
			continue
		}
		sections = append(sections, prompts.SummarySection{
			Corpus: corpus,
			Label:  corpus.Info().HebrewLabel,
			Text:   strings.Join(texts, "\n"),
		})
	}

	summaryOut, err := s.summary.Summarize(ctx, SummaryInput{Sections: sections, PreferredModel: model})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	validated := summaryOut.Validated
	for _, c := range allChunks {
		if !c.Validated {
			validated = false
			break
		}
	}

	rec := &domain.CanonicalGuideRecord{
		Fingerprint:  fingerprint,
		Status:       domain.GuideStatusReady,
		Section:      req.Section,
		Chapter:      req.Chapter,
		Paragraph:    req.Paragraph,
		Corpora:      req.SortedCorpora(),
		SummaryText:  summaryOut.Summary,
		SummaryModel: summaryOut.ModelUsed,
		Validated:    validated,
		Version:      domain.GuideSchemaVersion,
		ChunkCount:   len(allChunks),
	}
	if err := s.guideStore.SaveReady(ctx, rec, allChunks); err != nil {
		// The in-memory result is still returned for this invocation;
		// future callers see failed until the next attempt overwrites.
		s.logger.Error("guide terminal write failed",
			"component", "cache", "fingerprint", fingerprint, "error", err)
		if markErr := s.guideStore.MarkFailed(ctx, fingerprint, "cache_write_failed"); markErr != nil {
			s.logger.Error("mark cache_write_failed errored",
				"component", "cache", "fingerprint", fingerprint, "error", markErr)
		}
	}

	return &domain.GuideResult{Success: true, Guide: rec, Chunks: allChunks}, nil
}

// fetchCompanionText pulls the later commentary's paragraph as raw
// companion material. Failures degrade to no companion section.
func (s *GuideOrchestrator) fetchCompanionText(ctx context.Context, loc domain.Location) string {
	ref := s.resolver.BuildRef(domain.CorpusMishnahBerurah, loc)
	_, fragments, _, err := s.resolver.FetchFragments(ctx, ref)
	if err != nil {
		s.logger.Warn("companion fetch failed",
			"component", "guide", "ref", ref, "error", err)
		return ""
	}
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, "\n")
}

// gatherSources applies the per-corpus fetch strategy table.
func (s *GuideOrchestrator) gatherSources(ctx context.Context, req domain.GuideRequest, loc domain.Location, requested map[domain.CorpusID]bool) []corpusSource {
	var sources []corpusSource

	if requested[domain.CorpusShulchanArukh] {
		ref := s.resolver.BuildRef(domain.CorpusShulchanArukh, loc)
		providerRef, fragments, _, err := s.resolver.FetchFragments(ctx, ref)
		if err != nil {
			s.logger.Warn("primary fetch failed",
				"component", "guide", "ref", ref, "error", err)
		} else {
			sources = append(sources, corpusSource{
				corpus:       domain.CorpusShulchanArukh,
				fragments:    fragments,
				refCanonical: providerRef,
			})
		}
	}

	needTur := requested[domain.CorpusTur]
	needBY := requested[domain.CorpusBeitYosef]
	if !needTur && !needBY {
		return sources
	}

	alignRec, err := s.alignment.ChapterAlignment(ctx, req.Section, req.Chapter)
	if err != nil {
		s.logger.Warn("alignment unavailable, skipping aligned corpora",
			"component", "guide", "section", req.Section, "chapter", req.Chapter, "error", err)
		return sources
	}
	paraAlign, ok := alignRec.Paragraphs[strconv.Itoa(req.Paragraph)]
	if !ok {
		s.logger.Warn("paragraph missing from alignment",
			"component", "guide", "chapter", req.Chapter, "paragraph", req.Paragraph)
		return sources
	}

	if needTur {
		if src := s.turSource(ctx, req, paraAlign); src != nil {
			sources = append(sources, *src)
		}
	}
	if needBY {
		ca := paraAlign.Sources[domain.CorpusBeitYosef]
		// Without authoritative links the compendium stays out: the
		// similarity fallback is too loose for its long discursive
		// passages.
		if ca.Mode == domain.AlignmentModeLinked && len(ca.Refs) > 0 {
			if src := s.fetchByRefs(ctx, domain.CorpusBeitYosef, ca.Refs); src != nil {
				sources = append(sources, *src)
			}
		}
	}
	return sources
}

// turSource fetches the predecessor code for one paragraph: boundary
// slicing against the compendium's links when the alignment is linked,
// the ref list otherwise. No refs means an empty synthetic response.
func (s *GuideOrchestrator) turSource(ctx context.Context, req domain.GuideRequest, paraAlign domain.ParagraphAlignment) *corpusSource {
	ca := paraAlign.Sources[domain.CorpusTur]
	if len(ca.Refs) == 0 {
		return nil
	}
	if ca.Mode == domain.AlignmentModeLinked {
		if src := s.turSlicedSource(ctx, req); src != nil {
			return src
		}
	}
	return s.fetchByRefs(ctx, domain.CorpusTur, ca.Refs)
}

// turSlicedSource attempts the tighter paragraph slicing of the
// predecessor chapter, using the first words of the compendium's
// linked passages on consecutive paragraphs as boundary markers.
// Marker collisions with earlier occurrences in a monolithic chapter
// are a known limitation of the marker heuristic.
func (s *GuideOrchestrator) turSlicedSource(ctx context.Context, req domain.GuideRequest) *corpusSource {
	alignRec, err := s.alignment.ChapterAlignment(ctx, req.Section, req.Chapter)
	if err != nil {
		return nil
	}

	startMarker := s.boundaryMarker(ctx, alignRec, req.Paragraph)
	if startMarker == "" {
		return nil
	}
	endMarker := s.boundaryMarker(ctx, alignRec, req.Paragraph+1)

	chapterRef := s.resolver.BuildRef(domain.CorpusTur, domain.Location{Section: req.Section, Chapter: req.Chapter})
	providerRef, fragments, _, err := s.resolver.FetchFragments(ctx, chapterRef)
	if err != nil || len(fragments) == 0 {
		return nil
	}
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	full := strings.Join(texts, " ")

	start := strings.Index(full, startMarker)
	if start < 0 {
		return nil
	}
	end := len(full)
	if endMarker != "" {
		if idx := strings.Index(full[start+len(startMarker):], endMarker); idx >= 0 {
			end = start + len(startMarker) + idx
		}
	}
	segment := strings.TrimSpace(full[start:end])
	if segment == "" {
		return nil
	}
	return &corpusSource{
		corpus:       domain.CorpusTur,
		fragments:    []domain.Fragment{{Ref: providerRef, Text: segment}},
		refCanonical: providerRef,
	}
}

// boundaryMarker derives the slicing marker for a paragraph: the first
// four Hebrew-letter words of the compendium's first linked passage.
func (s *GuideOrchestrator) boundaryMarker(ctx context.Context, alignRec *domain.AlignmentRecord, paragraph int) string {
	paraAlign, ok := alignRec.Paragraphs[strconv.Itoa(paragraph)]
	if !ok {
		return ""
	}
	ca := paraAlign.Sources[domain.CorpusBeitYosef]
	if ca.Mode != domain.AlignmentModeLinked || len(ca.Refs) == 0 {
		return ""
	}
	_, fragments, _, err := s.resolver.FetchFragments(ctx, ca.Refs[0])
	if err != nil || len(fragments) == 0 {
		return ""
	}
	return firstHebrewWords(fragments[0].Text, 4)
}

// firstHebrewWords returns the first n whitespace words made purely of
// Hebrew letters, space-joined; empty when fewer than n exist.
func firstHebrewWords(text string, n int) string {
	var words []string
	for _, w := range strings.Fields(text) {
		if !isHebrewLetterWord(w) {
			continue
		}
		words = append(words, w)
		if len(words) == n {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func isHebrewLetterWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if r < 0x05D0 || r > 0x05EA {
			return false
		}
	}
	return true
}

// fetchByRefs pulls each ref of a list and concatenates the fragments.
func (s *GuideOrchestrator) fetchByRefs(ctx context.Context, corpus domain.CorpusID, refs []string) *corpusSource {
	src := corpusSource{corpus: corpus}
	for _, ref := range refs {
		providerRef, fragments, _, err := s.resolver.FetchFragments(ctx, ref)
		if err != nil {
			s.logger.Warn("ref fetch failed",
				"component", "guide", "corpus", corpus, "ref", ref, "error", err)
			continue
		}
		if src.refCanonical == "" {
			src.refCanonical = providerRef
		}
		src.fragments = append(src.fragments, fragments...)
	}
	if len(src.fragments) == 0 {
		return nil
	}
	return &src
}

// processCorpus runs one corpus task: chunks sequentially, each call
// carrying the previous chunk's raw text and explanation, the external
// cancellation flag polled every CancellationCheckInterval chunks.
func (s *GuideOrchestrator) processCorpus(ctx context.Context, fingerprint string, req domain.GuideRequest, src corpusSource, chunks []domain.Chunk, model, companionText string) corpusOutcome {
	outcome := corpusOutcome{corpus: src.corpus}
	label := src.corpus.Info().HebrewLabel

	prevText := ""
	prevExplanation := ""
	for i, chunk := range chunks {
		if i%s.cfg.CancellationCheckInterval == 0 {
			cancelled, err := s.cancel.IsCancelled(ctx, fingerprint)
			if err != nil {
				s.logger.Warn("cancellation probe failed",
					"component", "guide", "fingerprint", fingerprint, "error", err)
			} else if cancelled {
				outcome.cancelled = true
				return outcome
			}
			if err := s.guideStore.Touch(ctx, fingerprint); err != nil {
				s.logger.Warn("guide touch failed",
					"component", "guide", "fingerprint", fingerprint, "error", err)
			}
		}

		out, err := s.explanation.Explain(ctx, ExplainInput{
			Key: domain.ExplanationKey{
				Section:   req.Section,
				Chapter:   req.Chapter,
				Paragraph: req.Paragraph,
				Corpus:    src.corpus,
				Ordinal:   i + 1,
			},
			RefCanonical:    src.refCanonical,
			CurrentText:     chunk.Text,
			ContentHash:     chunk.ContentHash,
			PrevText:        prevText,
			PrevExplanation: prevExplanation,
			CorpusLabel:     label,
			CompanionText:   companionText,
			PreferredModel:  model,
		})
		if err != nil {
			outcome.err = err
			return outcome
		}

		outcome.chunks = append(outcome.chunks, domain.GuideChunk{
			Corpus:          src.corpus,
			Ordinal:         i + 1,
			ChunkID:         chunk.ID,
			Ref:             chunk.Ref,
			RawText:         chunk.Text,
			ExplanationText: out.Explanation,
			ModelName:       out.ModelUsed,
			Validated:       out.Validated,
			CacheHit:        out.CacheHit,
			DurationMs:      out.DurationMs,
		})
		prevText = chunk.Text
		prevExplanation = out.Explanation

		if err := s.progress.Increment(ctx, fingerprint); err != nil {
			s.logger.Warn("progress increment failed",
				"component", "guide", "fingerprint", fingerprint, "error", err)
		}
	}
	return outcome
}

// localizeError maps known failure conditions to the Hebrew
// user-facing message; internal detail stays in the logs.
func localizeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoContent):
		return domain.MsgNoContent
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.MsgMissingIdentifiers
	case errors.Is(err, domain.ErrCancelled):
		return domain.MsgCancelled
	default:
		return domain.MsgGenerationFailed
	}
}

// Get loads a guide and its chunks by fingerprint.
func (s *GuideOrchestrator) Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, []domain.GuideChunk, error) {
	rec, err := s.guideStore.Get(ctx, fingerprint)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := s.guideStore.GetChunks(ctx, fingerprint)
	if err != nil {
		return nil, nil, err
	}
	return rec, chunks, nil
}

// Progress reads the progress counters for a running generation.
func (s *GuideOrchestrator) Progress(ctx context.Context, fingerprint string) (int, int, error) {
	return s.progress.Get(ctx, fingerprint)
}

// Cancel requests cooperative cancellation of a running generation.
func (s *GuideOrchestrator) Cancel(ctx context.Context, fingerprint string) error {
	return s.cancel.RequestCancel(ctx, fingerprint)
}

// ChapterAlignment exposes the alignment engine for inspection.
func (s *GuideOrchestrator) ChapterAlignment(ctx context.Context, section domain.Section, chapter int) (*domain.AlignmentRecord, error) {
	return s.alignment.ChapterAlignment(ctx, section, chapter)
}
