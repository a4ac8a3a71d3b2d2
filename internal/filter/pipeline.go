// SPDX-License-Identifier: MIT

package filter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/cache"
	"github.com/Azure-Samples/content-safety/internal/llm"
	"github.com/Azure-Samples/content-safety/internal/log"
	"github.com/Azure-Samples/content-safety/internal/metrics"
	"github.com/Azure-Samples/content-safety/internal/reports"
)

// blocklistItemMaxChars is the upstream limit on blocklist item text.
const blocklistItemMaxChars = 128

const excerptMaxChars = 80

// Adjudicator resolves contested content to a final verdict.
type Adjudicator interface {
	EvaluateHarm(ctx context.Context, content string) (llm.Verdict, error)
}

// BlocklistWriter is the part of the upstream client the pipeline uses to
// persist confirmed-harmful content.
type BlocklistWriter interface {
	AddOrUpdateBlocklistItems(ctx context.Context, name string, items []azcs.TextBlocklistItem) ([]azcs.TextBlocklistItem, error)
}

// Recorder appends decisions to the audit log.
type Recorder interface {
	Insert(ctx context.Context, d reports.Decision) error
}

// Decision is the pipeline's answer for one piece of content.
type Decision struct {
	ID       string            `json:"id"`
	Allowed  bool              `json:"allowed"`
	Outcome  reports.Outcome   `json:"outcome"`
	Stage    reports.Stage     `json:"stage"`
	Category azcs.TextCategory `json:"category,omitempty"`
	Severity int               `json:"severity"`
	Cached   bool              `json:"cached"`
}

// Options wires the pipeline's collaborators.
type Options struct {
	Adjudicator Adjudicator
	Blocklists  BlocklistWriter
	Recorder    Recorder
	Cache       cache.Cache
	CacheTTL    time.Duration
	Blocklist   string // blocklist consulted by the primary filter and fed by confirmed verdicts
	FailOpen    bool   // allow content when a stage fails; default is to reject
}

// Pipeline runs content through staged filters: a medium-sensitivity primary
// filter, a low-sensitivity secondary filter, then LLM adjudication. Content
// the adjudicator confirms harmful is written back to the blocklist, so
// repeat submissions are caught by the primary filter without another
// adjudication round trip.
type Pipeline struct {
	primary     *Filter
	secondary   *Filter
	adjudicator Adjudicator
	blocklists  BlocklistWriter
	recorder    Recorder
	cache       cache.Cache
	cacheTTL    time.Duration
	blocklist   string
	failOpen    bool
	group       singleflight.Group
	logger      zerolog.Logger
}

// NewPipeline creates a moderation pipeline over the given analyzer.
func NewPipeline(analyzer Analyzer, opts Options) *Pipeline {
	c := opts.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	var primaryLists []string
	if opts.Blocklist != "" {
		primaryLists = []string{opts.Blocklist}
	}
	return &Pipeline{
		primary:     NewFilter(analyzer, LevelMedium, primaryLists...),
		secondary:   NewFilter(analyzer, LevelLow),
		adjudicator: opts.Adjudicator,
		blocklists:  opts.Blocklists,
		recorder:    opts.Recorder,
		cache:       c,
		cacheTTL:    ttl,
		blocklist:   opts.Blocklist,
		failOpen:    opts.FailOpen,
		logger:      log.WithComponent("pipeline"),
	}
}

// Evaluate moderates one piece of content. Identical content evaluated
// concurrently is collapsed into a single pass, and verdicts are cached by
// content hash.
func (p *Pipeline) Evaluate(ctx context.Context, content string) (Decision, error) {
	key := cache.HashKey(content)

	if raw, ok := p.cache.Get(key); ok {
		if s, ok := raw.(string); ok {
			var d Decision
			if err := json.Unmarshal([]byte(s), &d); err == nil {
				metrics.RecordDecisionCache("hit")
				d.Cached = true
				return d, nil
			}
		}
	}
	metrics.RecordDecisionCache("miss")

	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.evaluate(ctx, content, key)
	})
	d, _ := v.(Decision)
	return d, err
}

func (p *Pipeline) evaluate(ctx context.Context, content, key string) (Decision, error) {
	start := time.Now()
	d := Decision{ID: uuid.NewString()}
	ctx = log.ContextWithDecisionID(ctx, d.ID)
	logger := log.WithContext(ctx, p.logger)

	pres, err := p.primary.Check(ctx, content)
	if err != nil {
		return p.fail(ctx, d, reports.StagePrimary, key, content, start, err)
	}
	d.Category, d.Severity = pres.Category, pres.Severity

	if pres.BlocklistMatch != "" {
		logger.Info().
			Str(log.FieldStage, string(reports.StageBlocklist)).
			Str("match", pres.BlocklistMatch).
			Msg("content blocked by blocklist")
		return p.finish(ctx, d, reports.OutcomeBlocked, reports.StageBlocklist, key, content, start)
	}
	if !pres.Flagged {
		return p.finish(ctx, d, reports.OutcomeAllowed, reports.StagePrimary, key, content, start)
	}

	sres, err := p.secondary.Check(ctx, content)
	if err != nil {
		return p.fail(ctx, d, reports.StageSecondary, key, content, start, err)
	}
	if !sres.Flagged {
		return p.finish(ctx, d, reports.OutcomeAllowed, reports.StageSecondary, key, content, start)
	}
	d.Category, d.Severity = sres.Category, sres.Severity

	// Without an adjudicator, a secondary flag is final.
	if p.adjudicator == nil {
		return p.finish(ctx, d, reports.OutcomeBlocked, reports.StageSecondary, key, content, start)
	}

	verdict, err := p.adjudicator.EvaluateHarm(ctx, content)
	if err != nil {
		metrics.RecordAdjudicationVerdict("error")
		return p.fail(ctx, d, reports.StageAdjudication, key, content, start, err)
	}
	metrics.RecordAdjudicationVerdict(string(verdict))

	if verdict != llm.VerdictHarmful {
		return p.finish(ctx, d, reports.OutcomeAllowed, reports.StageAdjudication, key, content, start)
	}

	p.addToBlocklist(ctx, content, d.Category)
	return p.finish(ctx, d, reports.OutcomeBlocked, reports.StageAdjudication, key, content, start)
}

// addToBlocklist persists confirmed-harmful content. Failures are logged,
// not propagated: the decision to block already stands.
func (p *Pipeline) addToBlocklist(ctx context.Context, content string, category azcs.TextCategory) {
	if p.blocklists == nil || p.blocklist == "" {
		return
	}
	item := azcs.TextBlocklistItem{
		Description: string(category),
		Text:        truncate(content, blocklistItemMaxChars),
	}
	logger := log.WithContext(ctx, p.logger)
	if _, err := p.blocklists.AddOrUpdateBlocklistItems(ctx, p.blocklist, []azcs.TextBlocklistItem{item}); err != nil {
		logger.Warn().
			Err(err).
			Str(log.FieldBlocklist, p.blocklist).
			Msg("failed to add confirmed harmful content to blocklist")
		return
	}
	metrics.RecordBlocklistAutoAdd()
	logger.Info().
		Str(log.FieldBlocklist, p.blocklist).
		Str(log.FieldCategory, string(category)).
		Msg("confirmed harmful content added to blocklist")
}

func (p *Pipeline) finish(ctx context.Context, d Decision, outcome reports.Outcome, stage reports.Stage, key, content string, start time.Time) (Decision, error) {
	d.Outcome = outcome
	d.Stage = stage
	d.Allowed = outcome == reports.OutcomeAllowed

	metrics.RecordPipelineDecision(string(outcome), string(stage))
	p.record(ctx, d, key, content, start)

	if data, err := json.Marshal(d); err == nil {
		p.cache.Set(key, string(data), p.cacheTTL)
	}
	return d, nil
}

func (p *Pipeline) fail(ctx context.Context, d Decision, stage reports.Stage, key, content string, start time.Time, cause error) (Decision, error) {
	d.Outcome = reports.OutcomeError
	d.Stage = stage
	d.Allowed = p.failOpen

	metrics.RecordPipelineDecision(string(reports.OutcomeError), string(stage))
	p.record(ctx, d, key, content, start)

	logger := log.WithContext(ctx, p.logger)
	logger.Error().
		Err(cause).
		Str(log.FieldStage, string(stage)).
		Bool("fail_open", p.failOpen).
		Msg("pipeline stage failed")
	return d, cause
}

func (p *Pipeline) record(ctx context.Context, d Decision, key, content string, start time.Time) {
	if p.recorder == nil {
		return
	}
	row := reports.Decision{
		ID:          d.ID,
		CreatedAt:   time.Now(),
		ContentHash: key,
		Excerpt:     truncate(content, excerptMaxChars),
		Outcome:     d.Outcome,
		Stage:       d.Stage,
		Category:    string(d.Category),
		Severity:    d.Severity,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	// Audit rows survive request cancellation.
	if err := p.recorder.Insert(context.WithoutCancel(ctx), row); err != nil {
		logger := log.WithContext(ctx, p.logger)
		logger.Error().Err(err).Msg("failed to record moderation decision")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
