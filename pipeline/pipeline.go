// Package pipeline turns a conversation into a finished document:
// gate, round claim, draft, classify, render, format.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"auto_dialogue_document/chart"
	"auto_dialogue_document/classifier"
	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
	"auto_dialogue_document/rules"
	"auto_dialogue_document/session"
)

var (
	// ErrRoundClaimed means another request produced the document for
	// this cooldown window first.
	ErrRoundClaimed = errors.New("document round already claimed")
	ErrDraft        = errors.New("draft generation failed")
	ErrRender       = errors.New("chart rendering failed")
)

// ChartPolicy decides what happens when a single chart fails to render.
type ChartPolicy string

const (
	PolicyAbort ChartPolicy = "abort"
	PolicySkip  ChartPolicy = "skip"
)

func ParseChartPolicy(s string) (ChartPolicy, error) {
	switch p := ChartPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown chart failure policy %q (want abort or skip)", s)
	}
}

// Drafter writes the document text for a conversation. *generator.Agent
// satisfies it.
type Drafter interface {
	Draft(ctx context.Context, s gate.Snapshot) (formatter.Draft, error)
}

// Deps are the collaborators of a pipeline. Nil core components fall back
// to their defaults; Store and Drafter are only needed by Run.
type Deps struct {
	Store      session.Store
	Drafter    Drafter
	Gate       *gate.Gate
	Classifier *classifier.Classifier
	Renderer   *chart.Renderer
	Formatter  *formatter.Formatter
	Logger     *log.Logger
}

type Options struct {
	ChartPolicy ChartPolicy
	Verbose     bool
}

// Result describes one pass. A gate rejection is a normal result with
// Created set to false.
type Result struct {
	Decision      gate.Decision       `json:"decision"`
	Created       bool                `json:"created"`
	Draft         *formatter.Draft    `json:"draft,omitempty"`
	Document      *formatter.Document `json:"document,omitempty"`
	Charts        int                 `json:"charts"`
	SkippedCharts []string            `json:"skipped_charts,omitempty"`
}

type Pipeline struct {
	store      session.Store
	drafter    Drafter
	gate       *gate.Gate
	classifier *classifier.Classifier
	renderer   *chart.Renderer
	formatter  *formatter.Formatter
	policy     ChartPolicy
	verbose    bool
	logger     *log.Logger
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	p := &Pipeline{
		store:      deps.Store,
		drafter:    deps.Drafter,
		gate:       deps.Gate,
		classifier: deps.Classifier,
		renderer:   deps.Renderer,
		formatter:  deps.Formatter,
		policy:     opts.ChartPolicy,
		verbose:    opts.Verbose,
		logger:     deps.Logger,
	}
	if p.policy == "" {
		p.policy = PolicyAbort
	}
	if p.policy != PolicyAbort && p.policy != PolicySkip {
		return nil, fmt.Errorf("unknown chart failure policy %q", p.policy)
	}
	if p.gate == nil {
		p.gate = gate.New(gate.DefaultConfig())
	}
	if p.classifier == nil {
		c, err := classifier.New(rules.Default())
		if err != nil {
			return nil, err
		}
		p.classifier = c
	}
	if p.renderer == nil {
		p.renderer = chart.NewRenderer()
	}
	if p.formatter == nil {
		p.formatter = formatter.New()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	return p, nil
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[pipeline] "+format, args...)
}

// Evaluate runs the gate against the stored session without side effects.
func (p *Pipeline) Evaluate(ctx context.Context, id string) (gate.Decision, error) {
	if p.store == nil {
		return gate.Decision{}, errors.New("pipeline: no session store configured")
	}
	st, err := p.store.Get(ctx, id)
	if err != nil {
		return gate.Decision{}, err
	}
	return p.gate.EvaluateSnapshot(st.Snapshot()), nil
}

// Run evaluates the session and, when the gate approves, claims the current
// round and produces the document. The claim is released if a later step
// fails so the next request may try again.
func (p *Pipeline) Run(ctx context.Context, id string) (Result, error) {
	if p.store == nil || p.drafter == nil {
		return Result{}, errors.New("pipeline: session store and drafter are required")
	}
	st, err := p.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	snap := st.Snapshot()
	decision := p.gate.EvaluateSnapshot(snap)
	p.infof("session=%s round=%d last=%d decision=%q", id, snap.Round, snap.LastDocumentRound, decision.Reason)
	if !decision.ShouldCreate {
		return Result{Decision: decision}, nil
	}

	claimed, err := p.store.ClaimDocumentRound(ctx, id, snap.LastDocumentRound, snap.Round)
	if err != nil {
		return Result{}, fmt.Errorf("claim round: %w", err)
	}
	if !claimed {
		return Result{Decision: decision}, ErrRoundClaimed
	}

	draft, err := p.drafter.Draft(ctx, snap)
	if err != nil {
		p.release(ctx, id, snap)
		return Result{Decision: decision}, fmt.Errorf("%w: %w", ErrDraft, err)
	}
	p.infof("session=%s drafted title=%q category=%s", id, draft.Title, draft.Category)

	res, err := p.Synthesize(ctx, draft, snap.Transcript())
	if err != nil {
		p.release(ctx, id, snap)
		return Result{Decision: decision}, err
	}
	res.Decision = decision
	return res, nil
}

func (p *Pipeline) release(ctx context.Context, id string, snap gate.Snapshot) {
	ok, err := p.store.ClaimDocumentRound(context.WithoutCancel(ctx), id, snap.Round, snap.LastDocumentRound)
	if err != nil || !ok {
		p.logger.Printf("[pipeline] session=%s release of round %d failed: ok=%v err=%v", id, snap.Round, ok, err)
	}
}

// Synthesize classifies, renders and formats a draft. conversation is extra
// context for the classifier, usually the transcript.
func (p *Pipeline) Synthesize(ctx context.Context, draft formatter.Draft, conversation string) (Result, error) {
	specs := p.classifier.Classify(draft.Body, conversation)
	p.infof("classified %d chart(s)", len(specs))

	var (
		rendered []chart.Rendered
		skipped  []string
	)
	switch p.policy {
	case PolicySkip:
		for i, o := range p.renderer.RenderEach(ctx, specs) {
			if o.Err != nil {
				p.logger.Printf("[pipeline] skipping chart %q: %v", specs[i].Title, o.Err)
				skipped = append(skipped, specs[i].Title)
				continue
			}
			rendered = append(rendered, o.Rendered)
		}
	default:
		out, err := p.renderer.RenderAll(ctx, specs)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrRender, err)
		}
		rendered = out
	}

	doc := p.formatter.Format(draft, rendered)
	p.infof("formatted %q inserted=%d appended=%d", doc.Title, doc.Inserted, doc.Appended)
	return Result{
		Created:       true,
		Draft:         &draft,
		Document:      &doc,
		Charts:        len(rendered),
		SkippedCharts: skipped,
	}, nil
}
