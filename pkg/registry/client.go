// Package registry is the client for the remote livestock persistence
// API: record creation as a multipart upload, plus the reads the sync
// tooling needs. Unlike classification, a registry failure is surfaced
// to the operator; the draft is kept so the save can be retried.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
)

// SubmissionError is a registry rejection: network-level details are
// wrapped, server-side rejections carry the human-readable message from
// the response's error field.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Status == 0 {
		return "registry: " + e.Message
	}
	return fmt.Sprintf("registry: status %d: %s", e.Status, e.Message)
}

// Remote is a stored record as the registry reports it.
type Remote struct {
	ID             string    `json:"id"`
	OwnerName      string    `json:"ownerName"`
	Location       string    `json:"location"`
	PredictedBreed string    `json:"predictedBreed"`
	AgeMonths      *int      `json:"ageMonths"`
	Gender         string    `json:"gender"`
	Status         string    `json:"status"`
	ImageURLs      []string  `json:"imageUrls"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Client defines the registry operations the capture flow depends on.
type Client interface {
	// Create submits a validated record. The server's created-record
	// echo is returned on success; any failure is a *SubmissionError.
	Create(ctx context.Context, rec *record.Animal) (*record.Saved, error)
	// List fetches the caller's stored records.
	List(ctx context.Context) ([]Remote, error)
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithBaseURL sets a custom registry base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a registry client authenticated as the current
// session.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "http://localhost:8090",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Create(ctx context.Context, rec *record.Animal) (*record.Saved, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, img := range rec.Images {
		part, err := mw.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, &SubmissionError{Message: "build upload: " + err.Error()}
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, &SubmissionError{Message: "build upload: " + err.Error()}
		}
	}

	fields := map[string]string{
		"ownerName":         rec.OwnerName,
		"location":          rec.Location,
		"notes":             rec.Notes,
		"ageMonths":         strconv.Itoa(rec.Age.TotalMonths),
		"gender":            string(rec.Gender),
		"earTag":            rec.EarTag,
		"healthStatus":      string(rec.HealthStatus),
		"vaccinationStatus": string(rec.VaccinationStatus),
	}
	if rec.WeightKG > 0 {
		fields["weight"] = strconv.FormatFloat(rec.WeightKG, 'f', -1, 64)
	}
	if breed, conf := rec.PredictedBreed(); breed != "" {
		fields["predictedBreed"] = breed
		fields["breedConfidence"] = strconv.FormatFloat(conf, 'f', -1, 64)
	}
	if rec.Classification != nil && rec.Classification.IsCrossbreed {
		fields["isCrossbreed"] = "true"
	}
	if rec.Geo != nil {
		fields["gpsLat"] = strconv.FormatFloat(rec.Geo.Latitude, 'f', -1, 64)
		fields["gpsLng"] = strconv.FormatFloat(rec.Geo.Longitude, 'f', -1, 64)
		fields["gpsAccuracy"] = strconv.FormatFloat(rec.Geo.AccuracyMeters, 'f', -1, 64)
	}
	if !rec.CapturedAt.IsZero() {
		fields["capturedAt"] = rec.CapturedAt.UTC().Format(time.RFC3339)
	}
	if len(rec.Images) > 0 {
		verdictJSON, err := json.Marshal(rec.Images[0].Verdict)
		if err == nil {
			fields["imageQuality"] = string(verdictJSON)
		}
	}

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, &SubmissionError{Message: "build upload: " + err.Error()}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &SubmissionError{Message: "build upload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/animals", &body)
	if err != nil {
		return nil, &SubmissionError{Message: "create request: " + err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SubmissionError{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &SubmissionError{Status: resp.StatusCode, Message: serverMessage(respBody)}
	}

	var saved record.Saved
	if err := json.Unmarshal(respBody, &saved); err != nil {
		return nil, &SubmissionError{Status: resp.StatusCode, Message: "unmarshal response: " + err.Error()}
	}
	return &saved, nil
}

func (c *httpClient) List(ctx context.Context) ([]Remote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/animals", nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: list request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("registry: list status %d: %s", resp.StatusCode, serverMessage(respBody))
	}

	var records []Remote
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal records")
	}
	return records, nil
}

// serverMessage extracts the registry's human-readable error field,
// falling back to the raw body.
func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if len(body) == 0 {
		return "request rejected"
	}
	return string(body)
}
