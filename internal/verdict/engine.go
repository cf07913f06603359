// internal/verdict/engine.go
package verdict

import (
	"sort"

	"mcp-chew-check/internal/models"
)

type rule struct {
	restriction models.DietRestrictionType
	triggers    []models.FoodTag
	verdict     models.FoodVerdict
}

// Each restriction checks its own tags; the first restriction that matches decides.
var restrictionRules = map[models.DietRestrictionType]rule{
	models.SoftOnly: {models.SoftOnly, []models.FoodTag{models.TagHard, models.TagChewy}, models.VerdictAvoid},
	models.NoHard:   {models.NoHard, []models.FoodTag{models.TagHard}, models.VerdictAvoid},
	models.NoSticky: {models.NoSticky, []models.FoodTag{models.TagSticky}, models.VerdictAvoid},
	models.NoChewy:  {models.NoChewy, []models.FoodTag{models.TagChewy}, models.VerdictAvoid},
	models.NoHot:    {models.NoHot, []models.FoodTag{models.TagHot}, models.VerdictAvoid},
	models.NoCold:   {models.NoCold, []models.FoodTag{models.TagCold}, models.VerdictAvoid},
	models.NoSugary: {models.NoSugary, []models.FoodTag{models.TagSugary}, models.VerdictCaution},
	models.NoAcidic: {models.NoAcidic, []models.FoodTag{models.TagAcidic}, models.VerdictCaution},
}

// Decision is a verdict together with what caused it.
// Trigger is empty when no tag was responsible (safe, or no information).
type Decision struct {
	Verdict     models.FoodVerdict
	Trigger     models.FoodTag
	Restriction models.DietRestrictionType
}

// Compute returns the verdict for a tag set under the given active restrictions.
func Compute(tags models.Tags, restrictions []models.DietRestriction) models.FoodVerdict {
	return Evaluate(tags, restrictions).Verdict
}

// Evaluate applies the restriction rules in the order given, then the
// restriction-free defaults. It never returns cannotIdentify.
func Evaluate(tags models.Tags, restrictions []models.DietRestriction) Decision {
	for _, r := range restrictions {
		rl, ok := restrictionRules[r.Type]
		if !ok {
			continue
		}
		for _, trigger := range rl.triggers {
			if tags.Has(trigger) {
				return Decision{Verdict: rl.verdict, Trigger: trigger, Restriction: rl.restriction}
			}
		}
	}

	switch {
	case tags.Has(models.TagSugary):
		return Decision{Verdict: models.VerdictCaution, Trigger: models.TagSugary}
	case tags.Has(models.TagAcidic):
		return Decision{Verdict: models.VerdictCaution, Trigger: models.TagAcidic}
	case tags.Has(models.TagHot):
		return Decision{Verdict: models.VerdictLater, Trigger: models.TagHot}
	}
	return Decision{Verdict: models.VerdictSafe}
}

// Explain resolves the final verdict for a classification and the reasons shown with it.
// Identity failure wins over everything, then an upstream verdict, then the local rules.
func Explain(result *models.ClassificationResult, restrictions []models.DietRestriction) models.VerdictExplanation {
	if IsUnidentified(result.Primary.Name, result.Reasons) {
		return models.VerdictExplanation{Verdict: models.VerdictCannotIdentify, Reasons: unidentifiedReasons()}
	}

	decision := Evaluate(result.Primary.Tags, restrictions)
	if upstream, ok := models.ParseVerdict(result.Verdict); ok {
		if upstream == models.VerdictCannotIdentify {
			return models.VerdictExplanation{Verdict: upstream, Reasons: unidentifiedReasons()}
		}
		if upstream != decision.Verdict {
			decision = Decision{Verdict: upstream, Trigger: triggerFor(upstream, result.Primary.Tags)}
		}
	}

	if len(result.Reasons) > 0 {
		return models.VerdictExplanation{Verdict: decision.Verdict, Reasons: append([]string(nil), result.Reasons...)}
	}
	return models.VerdictExplanation{Verdict: decision.Verdict, Reasons: Reasons(decision)}
}

// triggerFor picks the tag most likely behind a verdict someone else computed.
func triggerFor(v models.FoodVerdict, tags models.Tags) models.FoodTag {
	var candidates []models.FoodTag
	switch v {
	case models.VerdictAvoid:
		candidates = []models.FoodTag{models.TagHard, models.TagSticky, models.TagChewy, models.TagHot, models.TagCold}
	case models.VerdictCaution:
		candidates = []models.FoodTag{models.TagSugary, models.TagAcidic}
	case models.VerdictLater:
		candidates = []models.FoodTag{models.TagHot}
	}
	for _, c := range candidates {
		if tags.Has(c) {
			return c
		}
	}
	return ""
}

// RankAlternatives computes each alternative's own verdict and orders them safest first.
func RankAlternatives(alts []models.FoodResult, restrictions []models.DietRestriction) []models.RankedAlternative {
	ranked := make([]models.RankedAlternative, 0, len(alts))
	for _, alt := range alts {
		ranked = append(ranked, models.RankedAlternative{
			Name:       alt.Name,
			Confidence: alt.Confidence,
			Tags:       alt.Tags,
			Verdict:    Compute(alt.Tags, restrictions),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Verdict.Severity() > ranked[j].Verdict.Severity()
	})
	return ranked
}
