// internal/verdict/reasons.go
package verdict

import (
	"fmt"
	"strings"

	"mcp-chew-check/internal/models"
)

var unidentifiedPhrases = []string{
	"can't identify",
	"cannot identify",
	"unable to identify",
	"not a food",
	"unknown food",
	"unrecognized",
	"not sure",
	"unclear",
}

// IsUnidentified reports whether the name or the reason text says the item
// could not be recognised as food.
func IsUnidentified(name string, reasons []string) bool {
	name = strings.ToLower(name)
	joined := strings.ToLower(strings.Join(reasons, " "))
	for _, phrase := range unidentifiedPhrases {
		if strings.Contains(name, phrase) || strings.Contains(joined, phrase) {
			return true
		}
	}
	return false
}

func unidentifiedReasons() []string {
	return []string{
		"Unable to identify this item as food",
		"For safety, avoid eating unidentified items",
		"Try taking a clearer photo or choosing a different item",
	}
}

var tagReasons = map[models.FoodTag][]string{
	models.TagHard: {
		"Hard texture can damage braces",
		"Biting hard foods can crack fillings, crowns or brackets",
	},
	models.TagSticky: {
		"Sticky foods can get stuck in braces and pull on brackets",
		"Residue clings to teeth and dental work",
	},
	models.TagChewy: {
		"Chewy texture requires excessive jaw movement",
		"Prolonged chewing can loosen appliances",
	},
	models.TagHot: {
		"Hot temperature can increase sensitivity after dental procedures",
		"Let it cool down before eating",
	},
	models.TagCold: {
		"Cold temperature can trigger tooth sensitivity",
		"Sensitive areas may react to very cold food",
	},
	models.TagSugary: {
		"Contains sugar - rinse after eating",
		"Sugar feeds bacteria around brackets and gum line",
	},
	models.TagAcidic: {
		"Acidic foods can weaken tooth enamel",
		"Wait 30 minutes before brushing",
	},
}

// Reasons synthesises one to three short explanations for a decision.
func Reasons(d Decision) []string {
	switch d.Verdict {
	case models.VerdictCannotIdentify:
		return unidentifiedReasons()
	case models.VerdictLater:
		return []string{
			"Wait until temperature cools down",
			"Hot foods can increase sensitivity",
		}
	case models.VerdictSafe:
		return []string{
			"No texture or temperature concerns detected",
			"Chew gently and rinse after eating",
		}
	}

	reasons, ok := tagReasons[d.Trigger]
	if !ok {
		if d.Verdict == models.VerdictAvoid {
			return []string{
				"Could not determine food properties",
				"Exercise caution with unidentified items",
			}
		}
		return []string{"Eat in moderation and rinse afterwards"}
	}

	out := append([]string(nil), reasons...)
	if d.Restriction != "" {
		out = append(out, fmt.Sprintf("Conflicts with your current %s diet restriction", d.Restriction))
	}
	return out
}
