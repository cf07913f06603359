// internal/classifier/recognizer.go
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mcp-chew-check/internal/models"
)

// Recognizer turns an image into a classification. Implementations report
// failure through the error value; they never panic on bad upstream data.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte, uc models.UserContext) (*models.ClassificationResult, error)
}

// Chain tries each recognizer in order and returns the first success.
// It stops early when the caller's context is done.
type Chain struct {
	recognizers []Recognizer
	logger      *slog.Logger
}

func NewChain(logger *slog.Logger, recognizers ...Recognizer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{recognizers: recognizers, logger: logger}
}

func (c *Chain) Recognize(ctx context.Context, image []byte, uc models.UserContext) (*models.ClassificationResult, error) {
	var errs []error
	for _, r := range c.recognizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := r.Recognize(ctx, image, uc)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		c.logger.Warn("recognizer failed, falling back",
			slog.String("recognizer", r.Name()),
			slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no recognizers configured")
	}
	return nil, errors.Join(errs...)
}
