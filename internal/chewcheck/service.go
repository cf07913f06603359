// internal/chewcheck/service.go
package chewcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mcp-chew-check/internal/classifier"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/storage"
	"mcp-chew-check/internal/telemetry"
	"mcp-chew-check/internal/verdict"
)

// ErrNotFound is returned for an unknown check id.
var ErrNotFound = errors.New("check not found")

// History persists finished checks.
type History interface {
	SaveCheck(check *models.CheckResult) error
	GetCheck(id string) (*models.CheckResult, error)
	GetChecks(userID, startDate, endDate string, limit int) ([]*models.CheckResult, error)
}

// Explainer writes a long-form explanation of a finished check.
type Explainer interface {
	Explain(ctx context.Context, check *models.CheckResult, uc models.UserContext) string
}

type Service struct {
	classifier *classifier.Classifier
	history    History
	explainer  Explainer
	metrics    *telemetry.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// New wires a service. history, explainer and metrics may be nil.
func New(cls *classifier.Classifier, history History, explainer Explainer, metrics *telemetry.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		classifier: cls,
		history:    history,
		explainer:  explainer,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Check classifies the request, resolves the verdict against the user's
// active restrictions and records the result.
func (s *Service) Check(ctx context.Context, req classifier.Request) (*models.CheckResult, error) {
	start := s.now()
	req.Context.Restrictions = ActiveRestrictions(req.Context.Restrictions, start)

	result, err := s.classifier.Classify(ctx, req)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	alternatives := make([]models.FoodResult, len(result.Alternatives))
	for i, alt := range result.Alternatives {
		if len(alt.Tags) == 0 {
			alt.Tags = verdict.InferTags(alt.Name)
		}
		alternatives[i] = alt
	}

	explanation := verdict.Explain(result.ClassificationResult, req.Context.Restrictions)
	check := &models.CheckResult{
		ID:           uuid.New().String(),
		UserID:       req.Context.UserID,
		FoodName:     result.Primary.Name,
		Confidence:   result.Primary.Confidence,
		Verdict:      explanation.Verdict,
		Tags:         result.Primary.Tags,
		Reasons:      explanation.Reasons,
		Source:       result.Source,
		Alternatives: verdict.RankAlternatives(alternatives, req.Context.Restrictions),
		PhotoPath:    result.PhotoPath,
		CreatedAt:    s.now().UTC(),
	}

	if s.history != nil {
		if err := s.history.SaveCheck(check); err != nil {
			s.logger.Error("failed to save check", slog.String("check_id", check.ID), slog.Any("error", err))
			if s.metrics != nil {
				s.metrics.RecordStorageFailure(ctx)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCheck(ctx, check.Source, check.Verdict, s.now().Sub(start))
	}

	s.logger.Info("chew check complete",
		slog.String("check_id", check.ID),
		slog.String("food", check.FoodName),
		slog.String("verdict", string(check.Verdict)),
		slog.String("source", string(check.Source)))
	return check, nil
}

// Explain returns a personalised explanation for a stored check.
func (s *Service) Explain(ctx context.Context, checkID string, uc models.UserContext) (*models.CheckResult, string, error) {
	check, err := s.Get(checkID)
	if err != nil {
		return nil, "", err
	}
	uc.Restrictions = ActiveRestrictions(uc.Restrictions, s.now())
	if s.explainer == nil {
		return check, "", fmt.Errorf("no explainer configured")
	}
	return check, s.explainer.Explain(ctx, check, uc), nil
}

func (s *Service) Get(checkID string) (*models.CheckResult, error) {
	if s.history == nil {
		return nil, ErrNotFound
	}
	check, err := s.history.GetCheck(checkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load check: %w", err)
	}
	return check, nil
}

func (s *Service) History(userID, startDate, endDate string, limit int) ([]*models.CheckResult, error) {
	if s.history == nil {
		return []*models.CheckResult{}, nil
	}
	return s.history.GetChecks(userID, startDate, endDate, limit)
}

// ActiveRestrictions drops restrictions whose end date has passed at now.
func ActiveRestrictions(restrictions []models.DietRestriction, now time.Time) []models.DietRestriction {
	var active []models.DietRestriction
	for _, r := range restrictions {
		if r.ActiveAt(now) {
			active = append(active, r)
		}
	}
	return active
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	if s.metrics == nil {
		return
	}
	reason := "classify"
	switch {
	case errors.Is(err, classifier.ErrUnusableImage):
		reason = "unusable_image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "cancelled"
	}
	s.metrics.RecordFailure(ctx, reason)
}
