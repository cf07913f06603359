// internal/verdict/tags.go
package verdict

import (
	"strings"

	"mcp-chew-check/internal/models"
)

// Substring keywords per tag. A name may hit several tags, including
// contradictory ones; they are passed through as-is.
var tagKeywords = map[models.FoodTag][]string{
	models.TagHard: {
		"nut", "almond", "walnut", "pecan", "cashew", "pistachio",
		"popcorn", "carrot", "apple", "chips", "cracker", "pretzel",
		"granola", "hard candy", "ice cube", "corn on the cob", "toffee",
	},
	models.TagCold: {
		"ice cream", "frozen", "popsicle", "ice lolly", "smoothie",
		"iced", "gelato", "sorbet", "slushie", "cold",
	},
	models.TagSugary: {
		"candy", "chocolate", "cookie", "cake", "donut", "doughnut",
		"soda", "juice", "dessert", "sweet", "ice cream", "syrup", "brownie", "pie",
	},
	models.TagSticky: {
		"gum", "caramel", "taffy", "honey", "syrup", "dried fruit", "raisin", "toffee",
	},
	models.TagHot: {
		"soup", "tea", "coffee", "cocoa", "hot chocolate", "broth", "ramen", "hot",
	},
	models.TagAcidic: {
		"lemon", "lime", "orange", "grapefruit", "tomato", "vinegar",
		"pickle", "citrus", "soda", "wine",
	},
	models.TagChewy: {
		"meat", "steak", "jerky", "bagel", "gum", "caramel", "taffy", "licorice", "gummy",
	},
	models.TagSoft: {
		"yogurt", "pudding", "soup", "mashed", "oatmeal", "banana",
		"smoothie", "applesauce", "scrambled", "custard", "pasta",
	},
}

// InferTags guesses tags from a food name. No match yields an empty set,
// which means "no information" rather than "no concerns".
func InferTags(foodName string) models.Tags {
	lower := strings.ToLower(foodName)
	var found []models.FoodTag
	for _, tag := range models.AllFoodTags {
		for _, kw := range tagKeywords[tag] {
			if strings.Contains(lower, kw) {
				found = append(found, tag)
				break
			}
		}
	}
	return models.NewTags(found...)
}
