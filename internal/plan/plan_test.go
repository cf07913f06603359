package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-chew-check/internal/models"
)

const samplePlan = `
user_id: u1
has_braces: true
restrictions:
  - type: No Hard
    end_date: 2026-12-01
    reason: new brackets
  - type: noSticky
  - type: softOnly
    end_date: 2026-10-01
doctor_notes:
  - Upper brackets placed
  - Wire adjusted
medications:
  - name: Ibuprofen
    dosage: 200mg
pain_entries:
  - tooth_number: 14
    pain_level: 6
`

func TestUserContext_FiltersEndedRestrictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))

	p, err := LoadFromPath(path)
	require.NoError(t, err)

	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	uc, err := p.UserContext(now)
	require.NoError(t, err)

	assert.Equal(t, "u1", uc.UserID)
	assert.True(t, uc.HasBraces)
	assert.Equal(t, []string{"noHard", "noSticky"}, uc.RestrictionNames())
	assert.Equal(t, "new brackets", uc.Restrictions[0].Reason)
	require.NotNil(t, uc.Restrictions[0].EndDate)
	assert.Nil(t, uc.Restrictions[1].EndDate)
	assert.Equal(t, []string{"Upper brackets placed", "Wire adjusted"}, uc.RecentProcedures)
	assert.Equal(t, []models.PainEntry{{ToothNumber: 14, PainLevel: 6}}, uc.PainEntries)
	assert.Equal(t, "Ibuprofen", uc.Medications[0].Name)
}

func TestLoad_JSON(t *testing.T) {
	p, err := Load([]byte(`{"has_braces": true, "restrictions": [{"type": "noHot", "end_date": "2026-10-20T00:00:00Z"}]}`), ".json")
	require.NoError(t, err)

	uc, err := p.UserContext(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"noHot"}, uc.RestrictionNames())
}

func TestUserContext_Errors(t *testing.T) {
	now := time.Now()

	p := &Plan{Restrictions: []Restriction{{Type: "noCrunchy"}}}
	_, err := p.UserContext(now)
	assert.ErrorContains(t, err, "unknown restriction type")

	p = &Plan{Restrictions: []Restriction{{Type: "noHard", EndDate: "next week"}}}
	_, err = p.UserContext(now)
	assert.ErrorContains(t, err, "invalid end_date")

	_, err = Load([]byte("restrictions: [unclosed"), ".yaml")
	assert.Error(t, err)
}

func TestUserContext_EndDateIncludesLastDay(t *testing.T) {
	p, err := Load([]byte("restrictions:\n  - type: softOnly\n    end_date: 2026-10-18\n"), ".yaml")
	require.NoError(t, err)

	uc, err := p.UserContext(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"softOnly"}, uc.RestrictionNames())

	uc, err = p.UserContext(time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"softOnly"}, uc.RestrictionNames())

	uc, err = p.UserContext(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, uc.Restrictions)
}
