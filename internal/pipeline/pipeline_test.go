package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/queue"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/classify"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/geo"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/quality"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/registry"
)

func encodePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// cleanAnalyzer disables the size proxies so tiny synthetic images do
// not trip the blur heuristic.
func cleanAnalyzer() *quality.Analyzer {
	return quality.NewWithConfig(quality.Config{
		BlurByteFloor:       0,
		BlurMinWidth:        800,
		BlurMinHeight:       600,
		DarkBrightnessFloor: 80,
	})
}

type stubClassifier struct {
	result  *classify.Result
	err     error
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, imageData []byte, verdict quality.Verdict) (*classify.Result, error) {
	s.calls++
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

type stubRegistry struct {
	saved *record.Saved
	err   error
	calls int
}

func (s *stubRegistry) Create(ctx context.Context, rec *record.Animal) (*record.Saved, error) {
	s.calls++
	return s.saved, s.err
}

func (s *stubRegistry) List(ctx context.Context) ([]registry.Remote, error) {
	return nil, nil
}

func openQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	require.NoError(t, q.Migrate(context.Background()))
	t.Cleanup(func() { q.Close() })
	return q
}

func newPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	if deps.Analyzer == nil {
		deps.Analyzer = cleanAnalyzer()
	}
	if deps.Classifier == nil {
		deps.Classifier = &stubClassifier{result: &classify.Result{}}
	}
	if deps.Capturer == nil {
		deps.Capturer = geo.NewCapturer(geo.Static(22.5, 72.9, 10), geo.DefaultConfig())
	}
	if deps.Registry == nil {
		deps.Registry = &stubRegistry{saved: &record.Saved{ID: "r1"}}
	}
	if deps.Queue == nil {
		deps.Queue = openQueue(t)
	}
	if deps.Connectivity == nil {
		deps.Connectivity = Static(true)
	}
	return New(deps)
}

func fillRequired(t *testing.T, p *Pipeline) {
	t.Helper()
	_, err := p.AddImage(context.Background(), "a.png", encodePNG(t, color.White))
	require.NoError(t, err)
	draft := p.Draft()
	draft.OwnerName = "Ramesh Patel"
	draft.Location = "Anand, Gujarat"
}

func TestAddImageAttachesAndWarns(t *testing.T) {
	p := newPipeline(t, Deps{})

	verdict, err := p.AddImage(context.Background(), "bright.png", encodePNG(t, color.White))
	require.NoError(t, err)
	assert.False(t, verdict.Suspect())
	assert.Len(t, p.Draft().Images, 1)
	assert.Empty(t, p.Warnings())

	verdict, err = p.AddImage(context.Background(), "dark.png", encodePNG(t, color.Black))
	require.NoError(t, err)
	assert.True(t, verdict.DarkSuspected)
	assert.Len(t, p.Draft().Images, 2)

	warnings := p.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "dark.png")
}

func TestAddImageRejectsUndecodable(t *testing.T) {
	p := newPipeline(t, Deps{})

	_, err := p.AddImage(context.Background(), "bad.jpg", []byte("not an image"))
	require.Error(t, err)
	var decodeErr *quality.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Empty(t, p.Draft().Images)
}

func TestSaveValidationFailureSkipsNetwork(t *testing.T) {
	reg := &stubRegistry{saved: &record.Saved{ID: "r1"}}
	checked := false
	p := newPipeline(t, Deps{
		Registry: reg,
		Connectivity: CheckerFunc(func(context.Context) bool {
			checked = true
			return true
		}),
	})
	_, err := p.AddImage(context.Background(), "a.png", encodePNG(t, color.White))
	require.NoError(t, err)
	// ownerName and location left empty

	outcome, err := p.Save(context.Background())
	require.Error(t, err)
	var valErr *record.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.ElementsMatch(t, []string{"ownerName", "location"}, valErr.Missing)
	assert.Equal(t, StateFailed, outcome.State)
	assert.False(t, checked)
	assert.Zero(t, reg.calls)
}

func TestSaveOnlineSubmits(t *testing.T) {
	reg := &stubRegistry{saved: &record.Saved{ID: "reg-42", Status: "registered"}}
	p := newPipeline(t, Deps{Registry: reg})
	fillRequired(t, p)

	outcome, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, outcome.State)
	require.NotNil(t, outcome.Saved)
	assert.Equal(t, "reg-42", outcome.Saved.ID)
	assert.Equal(t, 1, reg.calls)

	// draft reset for the next animal
	assert.Empty(t, p.Draft().Images)
	assert.Empty(t, p.Draft().OwnerName)
}

func TestSaveOfflineQueues(t *testing.T) {
	q := openQueue(t)
	reg := &stubRegistry{saved: &record.Saved{ID: "r1"}}
	p := newPipeline(t, Deps{Queue: q, Registry: reg, Connectivity: Static(false)})
	fillRequired(t, p)

	outcome, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateQueued, outcome.State)
	require.NotNil(t, outcome.Queued)
	assert.Zero(t, reg.calls)

	pending, err := q.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Ramesh Patel", pending[0].Record.OwnerName)
	require.Len(t, pending[0].Record.Images, 1)
	assert.NotEmpty(t, pending[0].Record.Images[0].Data)

	assert.Empty(t, p.Draft().OwnerName)
}

func TestSaveServerRejectionPreservesDraft(t *testing.T) {
	reg := &stubRegistry{err: &registry.SubmissionError{Status: 400, Message: "earTag already registered"}}
	p := newPipeline(t, Deps{Registry: reg})
	fillRequired(t, p)
	p.Draft().EarTag = "IN-1"

	outcome, err := p.Save(context.Background())
	require.Error(t, err)
	var subErr *registry.SubmissionError
	assert.True(t, errors.As(err, &subErr))
	assert.Equal(t, StateFailed, outcome.State)

	// still there for correction and retry
	assert.Equal(t, "Ramesh Patel", p.Draft().OwnerName)
	assert.Equal(t, "IN-1", p.Draft().EarTag)
}

func TestPredictStoresResult(t *testing.T) {
	cls := &stubClassifier{result: &classify.Result{
		Species: "cattle_or_buffalo",
		Predictions: []classify.Prediction{
			{Breed: "Gir (Cattle)", Confidence: 0.9},
		},
	}}
	p := newPipeline(t, Deps{Classifier: cls})
	_, err := p.AddImage(context.Background(), "a.png", encodePNG(t, color.White))
	require.NoError(t, err)

	result, err := p.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Gir (Cattle)", result.Top().Breed)
	require.NotNil(t, p.Draft().Classification)

	breed, conf := p.Draft().PredictedBreed()
	assert.Equal(t, "Gir (Cattle)", breed)
	assert.Equal(t, 0.9, conf)
}

func TestPredictWithoutImage(t *testing.T) {
	p := newPipeline(t, Deps{})
	_, err := p.Predict(context.Background())
	require.Error(t, err)
}

func TestStalePredictionAfterResetIsDiscarded(t *testing.T) {
	cls := &stubClassifier{
		result: &classify.Result{
			Predictions: []classify.Prediction{{Breed: "Sahiwal (Cattle)", Confidence: 0.8}},
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newPipeline(t, Deps{Classifier: cls})
	_, err := p.AddImage(context.Background(), "a.png", encodePNG(t, color.White))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Predict(context.Background())
		done <- err
	}()

	<-cls.entered
	p.Reset()
	close(cls.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("prediction did not complete")
	}
	assert.Nil(t, p.Draft().Classification)
}

func TestCaptureLocationAttachesFix(t *testing.T) {
	p := newPipeline(t, Deps{
		Capturer: geo.NewCapturer(geo.Static(23.03, 72.58, 8), geo.DefaultConfig()),
	})

	reading := p.CaptureLocation(context.Background())
	require.NotNil(t, reading)
	assert.Equal(t, 23.03, reading.Latitude)
	require.NotNil(t, p.Draft().Geo)
	assert.Equal(t, 72.58, p.Draft().Geo.Longitude)
}

func TestCaptureLocationFailureIsNonFatal(t *testing.T) {
	denied := geo.ProviderFunc(func(ctx context.Context) (geo.Reading, error) {
		return geo.Reading{}, &geo.Error{Kind: geo.KindPermissionDenied}
	})
	p := newPipeline(t, Deps{Capturer: geo.NewCapturer(denied, geo.DefaultConfig())})
	fillRequired(t, p)

	reading := p.CaptureLocation(context.Background())
	assert.Nil(t, reading)
	assert.Nil(t, p.Draft().Geo)
	assert.NotEmpty(t, p.Warnings())

	// record still saves without coordinates
	outcome, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, outcome.State)
}
