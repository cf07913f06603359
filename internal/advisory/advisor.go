// internal/advisory/advisor.go
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mcp-chew-check/internal/models"
)

const systemPrompt = `You are a dental safety advisor for people in orthodontic or dental treatment.
Answer briefly and practically. Never give a diagnosis; suggest contacting the dentist for pain above 5/10.`

// Advisor asks a chat model for food safety advice and explanations.
type Advisor struct {
	chat   Completer
	logger *slog.Logger
}

func NewAdvisor(chat Completer, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{chat: chat, logger: logger}
}

// Advise requests a verdict and reasons for a named food. A failed call is
// reported as Unparsable with an empty Raw so callers fall back to local rules.
func (a *Advisor) Advise(ctx context.Context, foodName string, tags models.Tags, uc models.UserContext) Response {
	prompt := fmt.Sprintf(`You are a dental safety advisor. Analyze if this food is safe for this user to eat.

Food: %s
Food characteristics: %s

User context:
%s

Respond with:
1. Verdict: "safe", "caution", "avoid", "later", or "cannotIdentify" (if not food or unclear)
2. Brief reasons (1-2 sentences)

Format your response as:
VERDICT: [verdict]
REASONS: [reasons]`, foodName, strings.Join(tags.Strings(), ", "), contextLines(uc, false))

	text, err := a.chat.Complete(ctx, systemPrompt, prompt, CompletionOptions{MaxTokens: 300, Temperature: 0.2})
	if err != nil {
		a.logger.Warn("advisory request failed", slog.String("food", foodName), slog.Any("error", err))
		return Unparsable{}
	}

	resp := Parse(text)
	if _, ok := resp.(Unparsable); ok {
		a.logger.Info("advisory reply had no verdict", slog.String("food", foodName))
	}
	return resp
}

// Explain produces a longer, personalised explanation of a finished check.
// It always returns text; when the model is unavailable a fixed sentence is used.
func (a *Advisor) Explain(ctx context.Context, check *models.CheckResult, uc models.UserContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Food identified: %s\n", check.FoodName)
	fmt.Fprintf(&b, "Confidence: %d%%\n", int(check.Confidence*100))
	fmt.Fprintf(&b, "Food characteristics: %s\n", strings.Join(check.Tags.Strings(), ", "))
	fmt.Fprintf(&b, "Current verdict: %s\n", check.Verdict)
	b.WriteString(contextLines(uc, true))

	tagList := strings.Join(check.Tags.Strings(), ", ")
	prompt := fmt.Sprintf(`You are a dental health advisor. Provide a detailed, personalized explanation for why this food received the verdict "%s".

%s

Please provide:
1. A clear explanation of why this food is "%s" for this specific user
2. How the food's properties (%s) interact with their dental situation
3. Specific concerns related to their current treatment stage and pain points
4. Actionable advice based on their restrictions and medications
5. If the verdict is "avoid" or "caution", suggest when and how they might be able to eat this food in the future

Keep the explanation clear, empathetic, and practical. Use 2-3 paragraphs.`, check.Verdict, b.String(), check.Verdict, tagList)

	text, err := a.chat.Complete(ctx, systemPrompt, prompt, CompletionOptions{MaxTokens: 500, Temperature: 0.7})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			a.logger.Warn("explanation request failed", slog.String("check_id", check.ID), slog.Any("error", err))
		}
		return CannedExplanation(check.FoodName, check.Verdict)
	}
	return strings.TrimSpace(text)
}

// CannedExplanation is the offline one-sentence explanation for a verdict.
func CannedExplanation(food string, v models.FoodVerdict) string {
	switch v {
	case models.VerdictSafe:
		return fmt.Sprintf("%s is safe for you to eat right now. It meets your current dietary restrictions and won't interfere with your treatment.", food)
	case models.VerdictCaution:
		return fmt.Sprintf("%s is okay to eat, but use caution. Make sure to rinse your mouth afterward and be gentle when chewing.", food)
	case models.VerdictAvoid:
		return fmt.Sprintf("You should avoid %s right now as it could damage your braces or interfere with your healing process.", food)
	case models.VerdictLater:
		return fmt.Sprintf("Wait before eating %s. This food is typically safe for you, but timing matters based on your current treatment stage.", food)
	default:
		return fmt.Sprintf("I was unable to identify %s as a food item. For your safety, avoid eating unidentified items. Try taking a clearer photo or choosing a different item to scan.", food)
	}
}

func contextLines(uc models.UserContext, detailed bool) string {
	var lines []string
	if uc.HasBraces {
		lines = append(lines, "User has braces: true")
	}
	for _, r := range uc.Restrictions {
		text := "Restriction: " + string(r.Type)
		if r.EndDate != nil {
			text += fmt.Sprintf(" (until %s)", r.EndDate.Format("Jan 2"))
		}
		if r.Reason != "" {
			text += " - " + r.Reason
		}
		lines = append(lines, text)
	}
	for _, m := range uc.Medications {
		text := fmt.Sprintf("Medication: %s - %s", m.Name, m.Dosage)
		if detailed && m.Instructions != "" {
			text += ": " + m.Instructions
		}
		lines = append(lines, text)
	}
	if len(uc.PainEntries) > 0 {
		lines = append(lines, "Current pain levels:")
		for _, p := range uc.PainEntries {
			text := fmt.Sprintf("Tooth #%d: pain level %d/10", p.ToothNumber, int(p.PainLevel))
			if detailed && p.Notes != "" {
				text += " - " + p.Notes
			}
			lines = append(lines, text)
		}
	}
	if detailed && len(uc.RecentProcedures) > 0 {
		lines = append(lines, "Recent doctor notes:")
		for i, note := range uc.RecentProcedures {
			if i == 2 {
				break
			}
			lines = append(lines, "- "+note)
		}
	}
	if len(lines) == 0 {
		return "No treatment details on file."
	}
	return strings.Join(lines, "\n")
}
