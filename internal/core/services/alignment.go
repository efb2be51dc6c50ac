package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shiurlab/shiur-core/internal/chunker"
	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/similarity"
)

// AlignmentService computes and caches the per-chapter alignment of
// the primary work against the predecessor code and the source
// compendium. Cross-process coordination goes through the store's
// conditional transactions; same-process callers for one chapter share
// a single pending build.
type AlignmentService struct {
	store    driven.AlignmentStore
	resolver *RefResolver
	cfg      *domain.RuntimeConfig
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*alignmentFlight
}

type alignmentFlight struct {
	done chan struct{}
	rec  *domain.AlignmentRecord
	err  error
}

// AlignmentServiceConfig holds dependencies for AlignmentService.
type AlignmentServiceConfig struct {
	Store    driven.AlignmentStore
	Resolver *RefResolver
	Runtime  *domain.RuntimeConfig
	Logger   *slog.Logger
}

// NewAlignmentService creates a new alignment service.
func NewAlignmentService(cfg AlignmentServiceConfig) *AlignmentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = domain.NewRuntimeConfig()
	}
	return &AlignmentService{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		cfg:      runtime,
		logger:   logger,
		inflight: make(map[string]*alignmentFlight),
	}
}

// ChapterAlignment returns the alignment record for (section,
// chapter), building it when absent, stale or invalid. Concurrent
// callers within the process share one pending build.
func (s *AlignmentService) ChapterAlignment(ctx context.Context, section domain.Section, chapter int) (*domain.AlignmentRecord, error) {
	flightKey := fmt.Sprintf("%s_%d", strings.ToLower(string(section)), chapter)

	s.mu.Lock()
	if f, ok := s.inflight[flightKey]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.rec, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &alignmentFlight{done: make(chan struct{})}
	s.inflight[flightKey] = f
	s.mu.Unlock()

	rec, err := s.resolve(ctx, section, chapter)
	f.rec, f.err = rec, err
	close(f.done)

	s.mu.Lock()
	delete(s.inflight, flightKey)
	s.mu.Unlock()

	return rec, err
}

// resolve serves from the store when possible and otherwise runs the
// acquire/poll loop.
func (s *AlignmentService) resolve(ctx context.Context, section domain.Section, chapter int) (*domain.AlignmentRecord, error) {
	key := domain.AlignmentKey(section, chapter)

	rec, err := s.store.Get(ctx, key)
	if err == nil && rec.Usable() {
		return s.revalidate(ctx, rec)
	}

	deadline := time.Now().Add(s.cfg.AlignmentWaitTimeout)
	for {
		acquired, current, err := s.store.TryAcquire(ctx, section, chapter, s.cfg.AlignmentLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire alignment lock %s: %w", key, err)
		}
		if acquired {
			return s.build(ctx, section, chapter, nil)
		}
		if current.Usable() {
			return s.revalidate(ctx, current)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAlignmentTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.AlignmentPollInterval):
		}
	}
}

// revalidate re-checks the upstream source hashes when the record has
// not been verified within the recheck interval. An unchanged upstream
// only touches sourceCheckedAt; any drift forces a rebuild, reusing
// the freshly fetched payload so the chapter is not fetched twice.
func (s *AlignmentService) revalidate(ctx context.Context, rec *domain.AlignmentRecord) (*domain.AlignmentRecord, error) {
	if time.Since(rec.SourceCheckedAt) < s.cfg.SourceRecheckInterval {
		return rec, nil
	}

	fetched, err := s.fetchCorpora(ctx, rec.Section, rec.Chapter)
	if err != nil {
		// Revalidation is best-effort; serve the stored record.
		s.logger.Warn("source revalidation fetch failed, serving stored alignment",
			"component", "alignment", "key", rec.Key, "error", err)
		return rec, nil
	}

	changed := false
	for corpus, cf := range fetched {
		if rec.SourceHash[corpus] != cf.hash {
			changed = true
			break
		}
	}
	if !changed {
		if err := s.store.TouchSourceChecked(ctx, rec.Key); err != nil {
			s.logger.Warn("touch sourceCheckedAt failed", "component", "alignment", "key", rec.Key, "error", err)
		}
		return rec, nil
	}

	s.logger.Info("source hash drift, rebuilding alignment", "component", "alignment", "key", rec.Key)
	acquired, current, err := s.store.TryAcquire(ctx, rec.Section, rec.Chapter, s.cfg.AlignmentLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire alignment lock %s: %w", rec.Key, err)
	}
	if !acquired {
		// Another process is already rebuilding; its result will be at
		// least as fresh as ours.
		if current.Usable() {
			return current, nil
		}
		return rec, nil
	}
	return s.build(ctx, rec.Section, rec.Chapter, fetched)
}

// corpusFetch is one chapter's upstream payload for one corpus.
type corpusFetch struct {
	providerRef string
	fragments   []domain.Fragment
	rawHe       []string
	hash        string
}

// fetchCorpora pulls the chapter from the three alignment corpora. The
// primary is required; the secondaries degrade to empty on upstream
// failure.
func (s *AlignmentService) fetchCorpora(ctx context.Context, section domain.Section, chapter int) (map[domain.CorpusID]*corpusFetch, error) {
	out := make(map[domain.CorpusID]*corpusFetch, 3)
	for _, corpus := range []domain.CorpusID{domain.CorpusShulchanArukh, domain.CorpusTur, domain.CorpusBeitYosef} {
		cf, err := s.fetchChapter(ctx, corpus, section, chapter)
		if err != nil {
			if corpus == domain.CorpusShulchanArukh {
				return nil, fmt.Errorf("fetch primary chapter: %w", err)
			}
			s.logger.Warn("secondary corpus fetch failed, aligning without it",
				"component", "alignment", "corpus", corpus, "chapter", chapter, "error", err)
			out[corpus] = &corpusFetch{}
			continue
		}
		out[corpus] = cf
	}
	return out, nil
}

func (s *AlignmentService) fetchChapter(ctx context.Context, corpus domain.CorpusID, section domain.Section, chapter int) (*corpusFetch, error) {
	ref := s.resolver.BuildRef(corpus, domain.Location{Section: section, Chapter: chapter})
	providerRef, fragments, rawHe, err := s.resolver.FetchFragments(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &corpusFetch{
		providerRef: providerRef,
		fragments:   fragments,
		rawHe:       rawHe,
		hash:        domain.ContentHash(strings.Join(rawHe, "\n")),
	}, nil
}

// refParaPattern extracts chapter and paragraph from a trailing
// ":<chapter>:<para>[:<sub>]" of a provider ref. Only used when a
// fragment carries no path; this is the single call site of the regex.
var refParaPattern = regexp.MustCompile(`(\d+):(\d+)(?::(\d+))?\s*$`)

func paragraphOf(f domain.Fragment) (int, bool) {
	if p, ok := f.Paragraph(); ok {
		return p, true
	}
	m := refParaPattern.FindStringSubmatch(f.Ref)
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[2])
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}

// build runs the full alignment procedure under a held lock.
// prefetched may carry the chapter payloads from a revalidation pass.
func (s *AlignmentService) build(ctx context.Context, section domain.Section, chapter int, prefetched map[domain.CorpusID]*corpusFetch) (rec *domain.AlignmentRecord, err error) {
	key := domain.AlignmentKey(section, chapter)
	defer func() {
		if err != nil {
			if markErr := s.store.MarkFailed(ctx, key, err.Error()); markErr != nil {
				s.logger.Error("mark alignment failed errored", "component", "alignment", "key", key, "error", markErr)
			}
		}
	}()

	fetched := prefetched
	if fetched == nil {
		fetched, err = s.fetchCorpora(ctx, section, chapter)
		if err != nil {
			return nil, err
		}
	}

	primary := fetched[domain.CorpusShulchanArukh]
	tur := fetched[domain.CorpusTur]
	beitYosef := fetched[domain.CorpusBeitYosef]

	sourceHash := make(map[domain.CorpusID]string, 3)
	for corpus, cf := range fetched {
		if cf != nil && cf.hash != "" {
			sourceHash[corpus] = cf.hash
		}
	}

	// Partition the primary's fragments by paragraph and concatenate
	// the texts per paragraph.
	paragraphText := make(map[int][]string)
	for _, f := range primary.fragments {
		para, ok := paragraphOf(f)
		if !ok {
			s.logger.Warn("fragment with unidentifiable paragraph skipped",
				"component", "alignment", "ref", f.Ref)
			continue
		}
		paragraphText[para] = append(paragraphText[para], f.Text)
	}
	if len(paragraphText) == 0 {
		return nil, fmt.Errorf("%w: primary chapter %s %d has no paragraphs", domain.ErrNoContent, section, chapter)
	}

	turIndex := s.buildIndex(ctx, domain.CorpusTur, tur)
	byIndex := s.buildIndex(ctx, domain.CorpusBeitYosef, beitYosef)

	paragraphs := make(map[string]domain.ParagraphAlignment, len(paragraphText))
	for _, para := range sortedParagraphs(paragraphText) {
		text := strings.Join(paragraphText[para], " ")
		paraRef := s.resolver.BuildRef(domain.CorpusShulchanArukh, domain.Location{Section: section, Chapter: chapter, Paragraph: para})

		turLinked, byLinked, linkErr := s.resolver.FetchLinkedRefs(ctx, paraRef, section)
		if linkErr != nil {
			s.logger.Warn("link endpoint failed, falling back to similarity",
				"component", "alignment", "ref", paraRef, "error", linkErr)
		}

		turAlign := alignOne(turLinked, turIndex, text)
		byAlign := alignOne(byLinked, byIndex, text)

		paragraphs[strconv.Itoa(para)] = domain.ParagraphAlignment{
			Sources: map[domain.CorpusID]domain.CorpusAlignment{
				domain.CorpusTur:       turAlign,
				domain.CorpusBeitYosef: byAlign,
			},
			Confidence: domain.RoundConfidence((turAlign.Score + byAlign.Score) / 2),
		}
	}

	rec = &domain.AlignmentRecord{
		Key:             key,
		Section:         section,
		Chapter:         chapter,
		Status:          domain.AlignmentStatusReady,
		Version:         domain.AlignmentSchemaVersion,
		SourceHash:      sourceHash,
		Paragraphs:      paragraphs,
		SourceCheckedAt: time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err = s.store.SaveReady(ctx, rec); err != nil {
		return nil, fmt.Errorf("save alignment %s: %w", key, err)
	}
	s.logger.Info("alignment built",
		"component", "alignment", "key", key, "paragraphs", len(paragraphs))
	return rec, nil
}

// buildIndex chunks a secondary corpus with the adaptive alignment
// profile and indexes the chunk texts under their refs.
func (s *AlignmentService) buildIndex(ctx context.Context, corpus domain.CorpusID, cf *corpusFetch) *similarity.Index {
	if cf == nil || len(cf.fragments) == 0 {
		return nil
	}
	profile := chunker.AlignmentProfileFor(len(cf.fragments))
	chunks := chunker.New(corpus, profile, s.logger).ChunkAll(ctx, cf.fragments, chunker.MaxAlignmentChunks)

	refs := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		refs[i] = c.Ref
		texts[i] = c.Text
	}
	return similarity.NewIndex(refs, texts)
}

// alignOne decides one (paragraph, secondary corpus) cell: linked refs
// win outright with score 1; otherwise the similarity selection runs;
// an empty selection records mode none.
func alignOne(linkedRefs []string, index *similarity.Index, paragraphText string) domain.CorpusAlignment {
	if len(linkedRefs) > 0 {
		return domain.CorpusAlignment{
			Refs:  dedupeStrings(linkedRefs),
			Mode:  domain.AlignmentModeLinked,
			Score: 1,
		}
	}
	if index != nil && index.Len() > 0 {
		sel := index.SelectBest(paragraphText)
		if len(sel.Refs) > 0 {
			return domain.CorpusAlignment{
				Refs:  sel.Refs,
				Mode:  domain.AlignmentModeSimilarity,
				Score: sel.Best,
			}
		}
	}
	return domain.CorpusAlignment{Mode: domain.AlignmentModeNone}
}

func sortedParagraphs(m map[int][]string) []int {
	out := make([]int, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
