// Package record defines the animal registration draft and its
// submission rules.
package record

import (
	"strings"
	"time"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/age"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/classify"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/geo"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/quality"
)

// Gender of the animal.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderFemale      Gender = "female"
	GenderMale        Gender = "male"
)

// HealthStatus mirrors the registry's accepted values.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthSick     HealthStatus = "sick"
	HealthInjured  HealthStatus = "injured"
	HealthPregnant HealthStatus = "pregnant"
)

// VaccinationStatus mirrors the registry's accepted values.
type VaccinationStatus string

const (
	VaccinationUnknown  VaccinationStatus = "unknown"
	VaccinationUpToDate VaccinationStatus = "up_to_date"
	VaccinationDue      VaccinationStatus = "due"
	VaccinationOverdue  VaccinationStatus = "overdue"
)

// CapturedImage is one photograph attached to a draft. Ownership of the
// bytes transfers into the record; the verdict is immutable once
// scored. Data is persisted separately from the record JSON, so it is
// excluded from marshaling.
type CapturedImage struct {
	Name    string          `json:"name"`
	Data    []byte          `json:"-"`
	Verdict quality.Verdict `json:"quality"`
}

// Animal is an in-progress registration record. A draft is mutated only
// by the single active capture flow and reset after a successful submit
// or queue append.
type Animal struct {
	OwnerName         string            `json:"ownerName"`
	Location          string            `json:"location"`
	EarTag            string            `json:"earTag,omitempty"`
	Gender            Gender            `json:"gender,omitempty"`
	WeightKG          float64           `json:"weight,omitempty"`
	HealthStatus      HealthStatus      `json:"healthStatus"`
	VaccinationStatus VaccinationStatus `json:"vaccinationStatus"`
	Notes             string            `json:"notes,omitempty"`
	Age               age.Value         `json:"age"`
	Images            []CapturedImage   `json:"images"`
	Geo               *geo.Reading      `json:"gps,omitempty"`
	Classification    *classify.Result  `json:"prediction,omitempty"`
	CapturedAt        time.Time         `json:"capturedAt,omitempty"`
}

// NewDraft returns an empty draft with the registry's default enum
// values.
func NewDraft() *Animal {
	return &Animal{
		HealthStatus:      HealthHealthy,
		VaccinationStatus: VaccinationUnknown,
	}
}

// PredictedBreed returns the adopted breed name and its confidence, or
// empty when no classification ran.
func (a *Animal) PredictedBreed() (string, float64) {
	if a.Classification == nil {
		return "", 0
	}
	top := a.Classification.Top()
	return top.Breed, top.Confidence
}

// ValidationError lists the required fields a draft is missing. It
// blocks submission and is recoverable by operator edit.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "record: missing required fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks submission eligibility: at least one image plus
// non-empty owner and location. It returns a *ValidationError naming
// every missing field, or nil.
func (a *Animal) Validate() error {
	var missing []string
	if len(a.Images) == 0 {
		missing = append(missing, "images")
	}
	if strings.TrimSpace(a.OwnerName) == "" {
		missing = append(missing, "ownerName")
	}
	if strings.TrimSpace(a.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Saved is the registry's echo of a created record.
type Saved struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	ImageURLs []string  `json:"imageUrls"`
}
