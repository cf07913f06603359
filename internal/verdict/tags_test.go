package verdict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"mcp-chew-check/internal/models"
)

func TestInferTags(t *testing.T) {
	tests := []struct {
		name     string
		food     string
		wantHave []models.FoodTag
	}{
		{"nuts", "Mixed Nuts", []models.FoodTag{models.TagHard}},
		{"almond", "almond butter", []models.FoodTag{models.TagHard}},
		{"ice-cream", "Ice Cream Sandwich", []models.FoodTag{models.TagCold, models.TagSugary}},
		{"caramel", "Caramel", []models.FoodTag{models.TagSticky, models.TagChewy}},
		{"coffee", "Black coffee", []models.FoodTag{models.TagHot}},
		{"lemon", "Lemon tart", []models.FoodTag{models.TagAcidic}},
		{"jerky", "Beef jerky", []models.FoodTag{models.TagChewy}},
		{"yogurt", "Greek Yogurt", []models.FoodTag{models.TagSoft}},
		{"contradictory", "iced caramel coffee", []models.FoodTag{models.TagCold, models.TagSticky, models.TagHot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferTags(tt.food)
			for _, want := range tt.wantHave {
				assert.True(t, got.Has(want), "%q: expected %s in %v", tt.food, want, got)
			}
		})
	}
}

func TestInferTags_NoMatch(t *testing.T) {
	got := InferTags("Quinoa")
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestInferTags_IdempotentAndCaseInsensitive(t *testing.T) {
	first := InferTags("Ice Cream Sandwich")
	second := InferTags("Ice Cream Sandwich")
	upper := InferTags("ICE CREAM SANDWICH")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeat call differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, upper); diff != "" {
		t.Errorf("casing changed the result (-mixed +upper):\n%s", diff)
	}
	assert.True(t, first.Has(models.TagCold))
}

func TestInferTags_CanonicalOrder(t *testing.T) {
	got := InferTags("sweet lemon soup")
	assert.Equal(t, models.NewTags(got...), got)
}
