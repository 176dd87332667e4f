// Package pipeline drives a single capture session from draft to a
// terminal outcome. Images, predictions and location attach to the
// current draft; Save decides between direct submission and the
// offline queue based on connectivity at that moment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/queue"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/session"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/classify"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/geo"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/quality"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/registry"
)

// State is the capture session's lifecycle position.
type State string

const (
	StateDraft      State = "draft"
	StateValidating State = "validating"
	StatePredicting State = "predicting"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateQueued     State = "queued"
	StateFailed     State = "failed"
)

// ErrSuperseded is returned when an async completion lost to a newer
// call or a draft reset; its result was discarded.
var ErrSuperseded = errors.New("pipeline: superseded")

// Deps are the collaborators a Pipeline orchestrates.
type Deps struct {
	Session      session.Context
	Analyzer     *quality.Analyzer
	Classifier   classify.Client
	Capturer     *geo.Capturer
	Registry     registry.Client
	Queue        *queue.Queue
	Connectivity Checker
}

// Outcome is the result of a Save attempt.
type Outcome struct {
	State  State
	Saved  *record.Saved
	Queued *queue.Queued
}

// Pipeline owns one draft record at a time. All mutation goes through
// its methods; async completions carry the draft generation they
// started against and are dropped if the generation has moved on.
type Pipeline struct {
	deps Deps

	mu         sync.Mutex
	state      State
	draft      *record.Animal
	warnings   []string
	generation uint64
	predictSeq uint64
}

// New creates a pipeline with a fresh draft.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:  deps,
		state: StateDraft,
		draft: record.NewDraft(),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Draft returns the record under construction.
func (p *Pipeline) Draft() *record.Animal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Warnings returns the quality notes accumulated on the draft.
func (p *Pipeline) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// AddImage screens and attaches an image to the draft. An undecodable
// payload is rejected without touching the draft; a decodable image is
// always attached, with quality concerns recorded as warnings.
func (p *Pipeline) AddImage(ctx context.Context, name string, data []byte) (quality.Verdict, error) {
	verdict, err := p.deps.Analyzer.Analyze(data)
	if err != nil {
		return quality.Verdict{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft.Images = append(p.draft.Images, record.CapturedImage{
		Name:    name,
		Data:    data,
		Verdict: verdict,
	})
	if verdict.BlurSuspected {
		p.warnings = append(p.warnings, fmt.Sprintf("%s: image may be blurred, consider retaking", name))
	}
	if verdict.DarkSuspected {
		p.warnings = append(p.warnings, fmt.Sprintf("%s: image is too dark, consider retaking", name))
	}
	return verdict, nil
}

// Predict runs breed classification on the first attached image and
// stores the result on the draft. A newer Predict or a Reset while the
// request is in flight discards this call's result.
func (p *Pipeline) Predict(ctx context.Context) (*classify.Result, error) {
	p.mu.Lock()
	if len(p.draft.Images) == 0 {
		p.mu.Unlock()
		return nil, eris.New("pipeline: no image to classify")
	}
	img := p.draft.Images[0]
	gen := p.generation
	p.predictSeq++
	seq := p.predictSeq
	p.state = StatePredicting
	p.mu.Unlock()

	result, err := p.deps.Classifier.Classify(ctx, img.Data, img.Verdict)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen || p.predictSeq != seq {
		zap.L().Debug("discarding stale prediction", zap.Uint64("generation", gen))
		return nil, ErrSuperseded
	}
	if p.state == StatePredicting {
		p.state = StateDraft
	}
	if err != nil {
		return nil, err
	}
	p.draft.Classification = result
	return result, nil
}

// CaptureLocation attaches a GPS fix to the draft. Location is always
// best effort: any capture failure is logged, noted as a warning and
// the draft proceeds without coordinates.
func (p *Pipeline) CaptureLocation(ctx context.Context) *geo.Reading {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	reading, err := p.deps.Capturer.Capture(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		return nil
	}
	if err != nil {
		zap.L().Warn("location capture failed, continuing without GPS", zap.Error(err))
		p.warnings = append(p.warnings, "location unavailable: "+err.Error())
		return nil
	}
	p.draft.Geo = &reading
	return &reading
}

// Save validates the draft and either submits it to the registry or,
// when offline, persists it to the local queue. Validation failures
// never touch the network. A rejected online submission leaves the
// draft intact for correction and retry.
func (p *Pipeline) Save(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateValidating
	if p.draft.CapturedAt.IsZero() {
		p.draft.CapturedAt = time.Now().UTC()
	}
	if err := p.draft.Validate(); err != nil {
		p.state = StateFailed
		return Outcome{State: StateFailed}, err
	}

	if !p.deps.Connectivity.Online(ctx) {
		item, err := p.deps.Queue.Enqueue(ctx, p.draft)
		if err != nil {
			p.state = StateFailed
			return Outcome{State: StateFailed}, err
		}
		zap.L().Info("offline, record queued for sync",
			zap.String("local_id", item.LocalID),
			zap.String("owner", p.draft.OwnerName),
			zap.String("flw_id", p.deps.Session.FLWID))
		p.resetLocked()
		p.state = StateQueued
		return Outcome{State: StateQueued, Queued: item}, nil
	}

	p.state = StateSubmitting
	saved, err := p.deps.Registry.Create(ctx, p.draft)
	if err != nil {
		p.state = StateFailed
		return Outcome{State: StateFailed}, err
	}

	zap.L().Info("record registered",
		zap.String("id", saved.ID),
		zap.String("owner", p.draft.OwnerName),
		zap.String("flw_id", p.deps.Session.FLWID))
	p.resetLocked()
	p.state = StateSubmitted
	return Outcome{State: StateSubmitted, Saved: saved}, nil
}

// Reset discards the draft and starts a new one. Outstanding async
// completions against the old draft are invalidated.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	p.state = StateDraft
}

func (p *Pipeline) resetLocked() {
	p.generation++
	p.draft = record.NewDraft()
	p.warnings = nil
}
