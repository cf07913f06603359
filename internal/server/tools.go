// internal/server/tools.go
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"mcp-chew-check/internal/chewcheck"
	"mcp-chew-check/internal/classifier"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/verdict"
)

const (
	defaultChecksLimit = 20
	maxChecksLimit     = 200
)

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

var toolNames = []string{"chew_check", "check_food_name", "evaluate_tags", "explain_verdict", "get_checks"}

type RestrictionParam struct {
	Type    string `json:"type" description:"Restriction type, e.g. noHard or \"No Hard\""`
	EndDate string `json:"end_date,omitempty" description:"Last day the restriction applies (YYYY-MM-DD), or an exact RFC 3339 end time"`
	Reason  string `json:"reason,omitempty" description:"Why the restriction was given"`
}

type UserContextParams struct {
	UserID           string              `json:"user_id,omitempty" description:"User the check belongs to"`
	HasBraces        bool                `json:"has_braces,omitempty" description:"Whether the user wears braces"`
	Restrictions     []RestrictionParam  `json:"restrictions,omitempty" description:"Diet restrictions from the treatment plan"`
	RecentProcedures []string            `json:"recent_procedures,omitempty" description:"Recent doctor notes, newest first"`
	Medications      []models.Medication `json:"medications,omitempty" description:"Current medications"`
	PainEntries      []models.PainEntry  `json:"pain_entries,omitempty" description:"Current pain levels by tooth"`
}

type ChewCheckParams struct {
	ImageBase64   string            `json:"image_base64,omitempty" description:"Base64 encoded photo of the food"`
	CorrectedName string            `json:"corrected_name,omitempty" description:"Food name typed by the user, used instead of the photo"`
	Context       UserContextParams `json:"context" description:"User treatment context"`
}

type CheckFoodNameParams struct {
	FoodName string            `json:"food_name" description:"Name of the food to check"`
	Context  UserContextParams `json:"context" description:"User treatment context"`
}

type EvaluateTagsParams struct {
	Tags         []string           `json:"tags" description:"Food tags: soft, hard, sticky, chewy, cold, hot, sugary, acidic"`
	Restrictions []RestrictionParam `json:"restrictions,omitempty" description:"Diet restrictions in priority order"`
}

type ExplainVerdictParams struct {
	CheckID string            `json:"check_id" description:"ID of a previous chew check"`
	Context UserContextParams `json:"context" description:"User treatment context"`
}

type GetChecksParams struct {
	UserID    string `json:"user_id,omitempty" description:"Only checks for this user"`
	StartDate string `json:"start_date,omitempty" description:"Start date for check query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date for check query (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of checks to return"`
}

// extractParams converts the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return badRequest("failed to marshal arguments: %v", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return badRequest("invalid parameters: %v", err)
	}
	return nil
}

func (s *ChewCheckServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"chew_check":      s.handleChewCheck,
		"check_food_name": s.handleCheckFoodName,
		"evaluate_tags":   s.handleEvaluateTags,
		"explain_verdict": s.handleExplainVerdict,
		"get_checks":      s.handleGetChecks,
	}
}

// handleChewCheck runs a full check from a photo or a corrected food name.
func (s *ChewCheckServer) handleChewCheck(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ChewCheckParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	uc, err := params.Context.toModel()
	if err != nil {
		return nil, err
	}

	checkReq := classifier.Request{CorrectedName: strings.TrimSpace(params.CorrectedName), Context: uc}
	if checkReq.CorrectedName == "" {
		if params.ImageBase64 == "" {
			return nil, badRequest("image_base64 or corrected_name is required")
		}
		image, err := decodeImage(params.ImageBase64)
		if err != nil {
			return nil, badRequest("invalid image_base64: %v", err)
		}
		checkReq.Image = image
	}

	check, err := s.service.Check(ctx, checkReq)
	if errors.Is(err, classifier.ErrUnusableImage) {
		return nil, &requestError{status: 422, err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("chew check failed: %w", err)
	}
	return s.createJSONResponse(check)
}

// handleCheckFoodName gives the offline verdict for a typed food name.
func (s *ChewCheckServer) handleCheckFoodName(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params CheckFoodNameParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.FoodName)
	if name == "" {
		return nil, badRequest("food_name is required")
	}
	uc, err := params.Context.toModel()
	if err != nil {
		return nil, err
	}

	result := &models.ClassificationResult{
		Primary: models.FoodResult{Name: name, Confidence: 1.0, Tags: verdict.InferTags(name)},
		Source:  models.SourceCorrected,
	}
	explanation := verdict.Explain(result, chewcheck.ActiveRestrictions(uc.Restrictions, time.Now()))

	return s.createJSONResponse(map[string]interface{}{
		"food_name": name,
		"tags":      result.Primary.Tags,
		"verdict":   explanation.Verdict,
		"label":     explanation.Verdict.DisplayName(),
		"reasons":   explanation.Reasons,
	})
}

// handleEvaluateTags runs the verdict rules on explicit tags.
func (s *ChewCheckServer) handleEvaluateTags(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params EvaluateTagsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	var tags []models.FoodTag
	for _, name := range params.Tags {
		tag, ok := models.ParseFoodTag(name)
		if !ok {
			return nil, badRequest("unknown tag %q", name)
		}
		tags = append(tags, tag)
	}
	restrictions, err := toRestrictions(params.Restrictions)
	if err != nil {
		return nil, err
	}

	decision := verdict.Evaluate(models.NewTags(tags...), chewcheck.ActiveRestrictions(restrictions, time.Now()))
	return s.createJSONResponse(map[string]interface{}{
		"verdict":     decision.Verdict,
		"label":       decision.Verdict.DisplayName(),
		"trigger":     decision.Trigger,
		"restriction": decision.Restriction,
		"reasons":     verdict.Reasons(decision),
	})
}

// handleExplainVerdict writes a personalised explanation of a stored check.
func (s *ChewCheckServer) handleExplainVerdict(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ExplainVerdictParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.CheckID == "" {
		return nil, badRequest("check_id is required")
	}
	uc, err := params.Context.toModel()
	if err != nil {
		return nil, err
	}

	check, text, err := s.service.Explain(ctx, params.CheckID, uc)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{
		"check":       check,
		"explanation": text,
	})
}

// handleGetChecks lists stored checks.
func (s *ChewCheckServer) handleGetChecks(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetChecksParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Limit <= 0 {
		params.Limit = defaultChecksLimit
	}
	if params.Limit > maxChecksLimit {
		params.Limit = maxChecksLimit
	}
	for _, d := range []string{params.StartDate, params.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, badRequest("invalid date %q, want YYYY-MM-DD", d)
		}
	}

	checks, err := s.service.History(params.UserID, params.StartDate, params.EndDate, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checks: %w", err)
	}
	return s.createJSONResponse(checks)
}

func (p UserContextParams) toModel() (models.UserContext, error) {
	restrictions, err := toRestrictions(p.Restrictions)
	if err != nil {
		return models.UserContext{}, err
	}
	return models.UserContext{
		UserID:           p.UserID,
		HasBraces:        p.HasBraces,
		Restrictions:     restrictions,
		RecentProcedures: p.RecentProcedures,
		Medications:      p.Medications,
		PainEntries:      p.PainEntries,
	}, nil
}

func toRestrictions(params []RestrictionParam) ([]models.DietRestriction, error) {
	out := make([]models.DietRestriction, 0, len(params))
	for _, p := range params {
		r, err := models.ParseRestriction(p.Type, p.EndDate, p.Reason)
		if err != nil {
			return nil, badRequest("%w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
