// internal/models/chewcheck.go
package models

import (
	"time"
)

type ResultSource string

const (
	SourceRemote    ResultSource = "remote"
	SourceMock      ResultSource = "mock"
	SourceCorrected ResultSource = "corrected"
)

type FoodResult struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Tags       Tags    `json:"tags"`
}

// ClassificationResult is what a classifier produced for one request.
// Verdict is empty when the source did not assert one.
type ClassificationResult struct {
	Primary      FoodResult   `json:"primary"`
	Alternatives []FoodResult `json:"alternatives"`
	Verdict      string       `json:"verdict,omitempty"`
	Reasons      []string     `json:"reasons,omitempty"`
	Source       ResultSource `json:"source"`
}

type VerdictExplanation struct {
	Verdict FoodVerdict `json:"verdict"`
	Reasons []string    `json:"reasons"`
}

type Medication struct {
	Name         string `json:"name" yaml:"name"`
	Dosage       string `json:"dosage" yaml:"dosage"`
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

type PainEntry struct {
	ToothNumber int     `json:"tooth_number" yaml:"tooth_number"`
	PainLevel   float64 `json:"pain_level" yaml:"pain_level"`
	Notes       string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// UserContext carries the treatment details a check is evaluated against.
// Restrictions are expected to be active already.
type UserContext struct {
	UserID           string            `json:"user_id,omitempty"`
	HasBraces        bool              `json:"has_braces"`
	Restrictions     []DietRestriction `json:"restrictions,omitempty"`
	RecentProcedures []string          `json:"recent_procedures,omitempty"`
	Medications      []Medication      `json:"medications,omitempty"`
	PainEntries      []PainEntry       `json:"pain_entries,omitempty"`
}

// RestrictionNames returns the restriction types as plain strings.
func (c UserContext) RestrictionNames() []string {
	names := make([]string, 0, len(c.Restrictions))
	for _, r := range c.Restrictions {
		names = append(names, string(r.Type))
	}
	return names
}

type RankedAlternative struct {
	Name       string      `json:"name"`
	Confidence float64     `json:"confidence"`
	Tags       Tags        `json:"tags"`
	Verdict    FoodVerdict `json:"verdict"`
}

// CheckResult is a completed chew check as shown to the user and kept in history.
type CheckResult struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	FoodName     string              `json:"food_name"`
	Confidence   float64             `json:"confidence"`
	Verdict      FoodVerdict         `json:"verdict"`
	Tags         Tags                `json:"tags"`
	Reasons      []string            `json:"reasons"`
	Source       ResultSource        `json:"source"`
	Alternatives []RankedAlternative `json:"alternatives"`
	PhotoPath    string              `json:"photo_path,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}
