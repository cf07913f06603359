// internal/classifier/mock.go
package classifier

import (
	"context"
	"math/rand/v2"
	"time"

	"mcp-chew-check/internal/models"
)

const (
	DefaultMockDelay        = time.Second
	maxMockAlternatives     = 3
	mockAlternativeDiscount = 0.8
)

type MockFood struct {
	Name       string
	Confidence float64
	Tags       models.Tags
}

// DefaultMockFoods is the fixed table the offline recognizer picks from.
var DefaultMockFoods = []MockFood{
	{"Yogurt", 0.89, models.NewTags(models.TagSoft, models.TagCold)},
	{"Apple", 0.92, models.NewTags(models.TagHard, models.TagSugary)},
	{"Ice Cream", 0.87, models.NewTags(models.TagSoft, models.TagCold, models.TagSugary)},
	{"Carrot", 0.91, models.NewTags(models.TagHard)},
	{"Pasta", 0.85, models.NewTags(models.TagSoft, models.TagHot)},
	{"Granola Bar", 0.88, models.NewTags(models.TagHard, models.TagSticky, models.TagSugary)},
	{"Soup", 0.90, models.NewTags(models.TagSoft, models.TagHot)},
	{"Bread", 0.86, models.NewTags(models.TagSoft)},
	{"Nuts", 0.93, models.NewTags(models.TagHard)},
	{"Banana", 0.89, models.NewTags(models.TagSoft)},
}

// MockRecognizer answers without a network. It asserts no verdict, so the
// verdict engine decides. It waits at least delay before answering.
type MockRecognizer struct {
	foods []MockFood
	delay time.Duration
	pick  func(n int) int
}

type MockOption func(*MockRecognizer)

func WithMockFoods(foods []MockFood) MockOption {
	return func(m *MockRecognizer) { m.foods = foods }
}

func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockRecognizer) { m.delay = d }
}

// WithPicker replaces the random index source, mainly for tests.
func WithPicker(pick func(n int) int) MockOption {
	return func(m *MockRecognizer) { m.pick = pick }
}

func NewMockRecognizer(opts ...MockOption) *MockRecognizer {
	m := &MockRecognizer{
		foods: DefaultMockFoods,
		delay: DefaultMockDelay,
		pick:  rand.IntN,
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.foods) == 0 {
		m.foods = DefaultMockFoods
	}
	return m
}

func (m *MockRecognizer) Name() string { return "mock" }

func (m *MockRecognizer) Recognize(ctx context.Context, image []byte, uc models.UserContext) (*models.ClassificationResult, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	chosen := m.foods[m.pick(len(m.foods))]

	alternatives := make([]models.FoodResult, 0, maxMockAlternatives)
	for _, f := range m.foods {
		if len(alternatives) == maxMockAlternatives {
			break
		}
		if f.Name == chosen.Name {
			continue
		}
		alternatives = append(alternatives, models.FoodResult{
			Name:       f.Name,
			Confidence: f.Confidence * mockAlternativeDiscount,
			Tags:       f.Tags,
		})
	}

	return &models.ClassificationResult{
		Primary: models.FoodResult{
			Name:       chosen.Name,
			Confidence: chosen.Confidence,
			Tags:       chosen.Tags,
		},
		Alternatives: alternatives,
		Source:       models.SourceMock,
	}, nil
}
