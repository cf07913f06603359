package chewcheck

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-chew-check/internal/classifier"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/storage"
	"mcp-chew-check/internal/telemetry"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func nutsClassifier() *classifier.Classifier {
	mock := classifier.NewMockRecognizer(
		classifier.WithMockDelay(0),
		classifier.WithMockFoods([]classifier.MockFood{
			{Name: "Nuts", Confidence: 0.93, Tags: models.NewTags(models.TagHard)},
			{Name: "Banana", Confidence: 0.89, Tags: models.NewTags(models.TagSoft)},
			{Name: "Granola Bar", Confidence: 0.88, Tags: models.NewTags(models.TagHard, models.TagSticky, models.TagSugary)},
		}),
		classifier.WithPicker(func(int) int { return 0 }),
	)
	return classifier.New(classifier.NewChain(nil, mock), nil, nil, nil)
}

func newSQLite(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "checks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type brokenHistory struct{}

func (brokenHistory) SaveCheck(*models.CheckResult) error { return errors.New("disk full") }
func (brokenHistory) GetCheck(string) (*models.CheckResult, error) {
	return nil, storage.ErrNotFound
}
func (brokenHistory) GetChecks(string, string, string, int) ([]*models.CheckResult, error) {
	return nil, nil
}

type cannedExplainer struct{ text string }

func (c cannedExplainer) Explain(ctx context.Context, check *models.CheckResult, uc models.UserContext) string {
	return c.text + " " + check.FoodName
}

func TestCheck_NutsWithNoHard(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)
	provider := telemetry.NewProvider()
	recorder, err := telemetry.NewRecorder(provider.Meter())
	require.NoError(t, err)

	svc := New(nutsClassifier(), store, nil, recorder, nil)
	check, err := svc.Check(ctx, classifier.Request{
		Image: pngImage,
		Context: models.UserContext{
			UserID:       "u1",
			HasBraces:    true,
			Restrictions: []models.DietRestriction{{Type: models.NoHard}},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, check.ID)
	assert.Equal(t, "Nuts", check.FoodName)
	assert.Equal(t, models.VerdictAvoid, check.Verdict)
	assert.Contains(t, check.Reasons, "Hard texture can damage braces")
	assert.Equal(t, models.SourceMock, check.Source)

	require.Len(t, check.Alternatives, 2)
	assert.Equal(t, "Banana", check.Alternatives[0].Name)
	assert.Equal(t, models.VerdictSafe, check.Alternatives[0].Verdict)
	assert.Equal(t, models.VerdictAvoid, check.Alternatives[1].Verdict)

	stored, err := svc.Get(check.ID)
	require.NoError(t, err)
	assert.Equal(t, check.Verdict, stored.Verdict)

	history, err := svc.History("u1", "", "", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	snap, err := provider.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap["chewcheck.checks.total{source=mock,verdict=avoid}"])
}

func TestCheck_IgnoresEndedRestrictions(t *testing.T) {
	ended := time.Now().Add(-24 * time.Hour)
	svc := New(nutsClassifier(), nil, nil, nil, nil)

	check, err := svc.Check(context.Background(), classifier.Request{
		Image:   pngImage,
		Context: models.UserContext{Restrictions: []models.DietRestriction{{Type: models.NoHard, EndDate: &ended}}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictSafe, check.Verdict)
}

func TestCheck_StorageFailureStillReturnsResult(t *testing.T) {
	svc := New(nutsClassifier(), brokenHistory{}, nil, nil, nil)
	check, err := svc.Check(context.Background(), classifier.Request{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, "Nuts", check.FoodName)
}

func TestCheck_Errors(t *testing.T) {
	svc := New(nutsClassifier(), nil, nil, nil, nil)

	_, err := svc.Check(context.Background(), classifier.Request{Image: []byte("plain text")})
	assert.ErrorIs(t, err, classifier.ErrUnusableImage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	check, err := svc.Check(ctx, classifier.Request{Image: pngImage})
	assert.Nil(t, check)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck_CorrectedName(t *testing.T) {
	svc := New(nutsClassifier(), nil, nil, nil, nil)
	check, err := svc.Check(context.Background(), classifier.Request{
		CorrectedName: "Beef jerky",
		Context:       models.UserContext{Restrictions: []models.DietRestriction{{Type: models.NoChewy}}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceCorrected, check.Source)
	assert.Equal(t, 1.0, check.Confidence)
	assert.Equal(t, models.VerdictAvoid, check.Verdict)
	assert.Empty(t, check.Alternatives)
}

func TestExplain(t *testing.T) {
	ctx := context.Background()
	svc := New(nutsClassifier(), newSQLite(t), cannedExplainer{"About"}, nil, nil)

	check, err := svc.Check(ctx, classifier.Request{Image: pngImage})
	require.NoError(t, err)

	got, text, err := svc.Explain(ctx, check.ID, models.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, check.ID, got.ID)
	assert.Equal(t, "About Nuts", text)

	_, _, err = svc.Explain(ctx, "missing", models.UserContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}
