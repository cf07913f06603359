// internal/plan/plan.go
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mcp-chew-check/internal/models"
)

// Plan is a treatment plan file: braces status, diet restrictions and the
// notes a chew check is personalised with.
type Plan struct {
	UserID       string              `yaml:"user_id" json:"user_id"`
	HasBraces    bool                `yaml:"has_braces" json:"has_braces"`
	Restrictions []Restriction       `yaml:"restrictions" json:"restrictions"`
	DoctorNotes  []string            `yaml:"doctor_notes" json:"doctor_notes"`
	Medications  []models.Medication `yaml:"medications" json:"medications"`
	PainEntries  []models.PainEntry  `yaml:"pain_entries" json:"pain_entries"`
}

// Restriction is the file form of a diet restriction. Type accepts display
// names such as "No Hard"; EndDate is YYYY-MM-DD or RFC 3339.
type Restriction struct {
	Type    string `yaml:"type" json:"type"`
	EndDate string `yaml:"end_date" json:"end_date"`
	Reason  string `yaml:"reason" json:"reason"`
}

// LoadFromPath reads a plan file. Format follows the extension; anything
// other than .json is read as YAML.
func LoadFromPath(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

func Load(data []byte, ext string) (*Plan, error) {
	var p Plan
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse plan json: %w", err)
		}
		return &p, nil
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan yaml: %w", err)
	}
	return &p, nil
}

// UserContext converts the plan into the context a check runs against.
// Restrictions that have ended by now are left out.
func (p *Plan) UserContext(now time.Time) (models.UserContext, error) {
	uc := models.UserContext{
		UserID:           p.UserID,
		HasBraces:        p.HasBraces,
		RecentProcedures: p.DoctorNotes,
		Medications:      p.Medications,
		PainEntries:      p.PainEntries,
	}
	for i, r := range p.Restrictions {
		restriction, err := models.ParseRestriction(r.Type, r.EndDate, r.Reason)
		if err != nil {
			return models.UserContext{}, fmt.Errorf("restriction %d: %w", i, err)
		}
		if restriction.ActiveAt(now) {
			uc.Restrictions = append(uc.Restrictions, restriction)
		}
	}
	return uc, nil
}
