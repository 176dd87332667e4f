// Package fieldcapture provides the field-side capture flow for
// livestock breed registration.
//
// It ties together image quality screening, breed classification,
// location capture, the offline submission queue and the registry
// client behind one session-scoped entry point.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		fieldcapture "github.com/bhataakib02/bpa-breed-recognition-sub001"
//		"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/config"
//		"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/session"
//	)
//
//	func main() {
//		cfg, err := config.Load()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		app, err := fieldcapture.New(cfg, session.Context{Token: cfg.Session.Token})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer app.Close()
//
//		ctx := context.Background()
//		if _, err := app.AddImageFile(ctx, "cow.jpg"); err != nil {
//			log.Fatal(err)
//		}
//
//		draft := app.Draft()
//		draft.OwnerName = "Ramesh Patel"
//		draft.Location = "Anand, Gujarat"
//
//		app.Predict(ctx)
//		outcome, err := app.Save(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("saved: %s", outcome.State)
//	}
//
// Classification is advisory: when the prediction backend is down the
// flow continues with a locally generated placeholder instead of
// blocking the registration. Saving while offline persists the record
// to a local queue; Sync drains it once connectivity returns.
package fieldcapture

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/config"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/pipeline"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/queue"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/session"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/syncer"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/utils"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/classify"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/geo"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/quality"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/registry"
)

// Version of the field capture library
const Version = "1.0.0"

// FieldCapture is the high-level interface for one field worker
// session: draft records, classification, queueing and sync.
type FieldCapture struct {
	pipeline *pipeline.Pipeline
	queue    *queue.Queue
	registry registry.Client
	syncer   *syncer.Syncer
}

// Option overrides a default collaborator, mainly for tests and for
// wiring a real GPS source.
type Option func(*options)

type options struct {
	provider     geo.Provider
	connectivity pipeline.Checker
	classifier   classify.Client
	registry     registry.Client
}

// WithGeoProvider sets the position source. Without one, location
// capture reports unsupported and records save without coordinates.
func WithGeoProvider(p geo.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithConnectivity overrides the registry reachability probe.
func WithConnectivity(c pipeline.Checker) Option {
	return func(o *options) { o.connectivity = c }
}

// WithClassifier overrides the breed classification client.
func WithClassifier(c classify.Client) Option {
	return func(o *options) { o.classifier = c }
}

// WithRegistry overrides the registry client.
func WithRegistry(r registry.Client) Option {
	return func(o *options) { o.registry = r }
}

// New builds a session from configuration, opening the offline queue
// at its configured path.
func New(cfg *config.Config, sess session.Context, opts ...Option) (*FieldCapture, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(cfg.Queue.Path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, eris.Wrap(err, "fieldcapture: create queue directory")
		}
	}
	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		return nil, err
	}
	if err := q.Migrate(context.Background()); err != nil {
		q.Close()
		return nil, err
	}

	analyzer := quality.NewWithConfig(quality.Config{
		BlurByteFloor:       cfg.Quality.BlurByteFloor,
		BlurMinWidth:        cfg.Quality.BlurMinWidth,
		BlurMinHeight:       cfg.Quality.BlurMinHeight,
		DarkBrightnessFloor: cfg.Quality.DarkBrightnessFloor,
	})

	classifier := o.classifier
	if classifier == nil {
		classifyOpts := []classify.Option{
			classify.WithBaseURL(cfg.Classify.BaseURL),
			classify.WithTimeout(time.Duration(cfg.Classify.TimeoutSecs) * time.Second),
		}
		if len(cfg.Classify.BreedCandidates) > 0 {
			classifyOpts = append(classifyOpts, classify.WithBreedCandidates(cfg.Classify.BreedCandidates))
		}
		if cfg.Classify.MaxUploadDim > 0 {
			classifyOpts = append(classifyOpts, classify.WithMaxUploadDim(cfg.Classify.MaxUploadDim))
		}
		classifier = classify.NewClient(sess.Token, classifyOpts...)
	}

	reg := o.registry
	if reg == nil {
		reg = registry.NewClient(sess.Token, registry.WithBaseURL(cfg.Registry.BaseURL))
	}

	connectivity := o.connectivity
	if connectivity == nil {
		connectivity = pipeline.NewHTTPChecker(cfg.Registry.BaseURL)
	}

	capturer := geo.NewCapturer(o.provider, geo.Config{
		Timeout: time.Duration(cfg.Geo.TimeoutMS) * time.Millisecond,
		MaxAge:  time.Duration(cfg.Geo.MaxAgeSecs) * time.Second,
	})

	return &FieldCapture{
		pipeline: pipeline.New(pipeline.Deps{
			Session:      sess,
			Analyzer:     analyzer,
			Classifier:   classifier,
			Capturer:     capturer,
			Registry:     reg,
			Queue:        q,
			Connectivity: connectivity,
		}),
		queue:    q,
		registry: reg,
		syncer:   syncer.New(q, reg),
	}, nil
}

// AddImageFile reads and attaches an image file to the draft.
func (fc *FieldCapture) AddImageFile(ctx context.Context, path string) (quality.Verdict, error) {
	if !utils.FileExists(path) {
		return quality.Verdict{}, eris.Errorf("fieldcapture: no such file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return quality.Verdict{}, eris.Wrap(err, "fieldcapture: read image")
	}
	return fc.pipeline.AddImage(ctx, filepath.Base(path), data)
}

// AddImage attaches raw image bytes to the draft.
func (fc *FieldCapture) AddImage(ctx context.Context, name string, data []byte) (quality.Verdict, error) {
	return fc.pipeline.AddImage(ctx, name, data)
}

// Draft returns the record under construction.
func (fc *FieldCapture) Draft() *record.Animal {
	return fc.pipeline.Draft()
}

// Warnings returns quality notes for the current draft.
func (fc *FieldCapture) Warnings() []string {
	return fc.pipeline.Warnings()
}

// State returns the capture session state.
func (fc *FieldCapture) State() pipeline.State {
	return fc.pipeline.State()
}

// Predict runs breed classification on the draft's first image.
func (fc *FieldCapture) Predict(ctx context.Context) (*classify.Result, error) {
	return fc.pipeline.Predict(ctx)
}

// CaptureLocation attaches a best-effort GPS fix to the draft.
func (fc *FieldCapture) CaptureLocation(ctx context.Context) *geo.Reading {
	return fc.pipeline.CaptureLocation(ctx)
}

// Save submits the draft or queues it when offline.
func (fc *FieldCapture) Save(ctx context.Context) (pipeline.Outcome, error) {
	return fc.pipeline.Save(ctx)
}

// Reset discards the current draft.
func (fc *FieldCapture) Reset() {
	fc.pipeline.Reset()
}

// Sync replays queued records against the registry.
func (fc *FieldCapture) Sync(ctx context.Context) (syncer.Summary, error) {
	return fc.syncer.Run(ctx)
}

// Pending lists the records waiting in the offline queue.
func (fc *FieldCapture) Pending(ctx context.Context) ([]queue.Queued, error) {
	return fc.queue.ListPending(ctx)
}

// RemoveQueued deletes a queued record by its local id.
func (fc *FieldCapture) RemoveQueued(ctx context.Context, localID string) error {
	return fc.queue.Remove(ctx, localID)
}

// Registered fetches the records already stored in the registry.
func (fc *FieldCapture) Registered(ctx context.Context) ([]registry.Remote, error) {
	return fc.registry.List(ctx)
}

// Close releases the offline queue.
func (fc *FieldCapture) Close() error {
	return fc.queue.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
