// internal/classifier/classifier.go
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mcp-chew-check/internal/advisory"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/verdict"
)

// ErrUnusableImage means the input cannot be classified at all. It is the
// only failure Classify reports besides cancellation.
var ErrUnusableImage = errors.New("image is empty or not a recognised image format")

// Request is either an image or a user-corrected food name.
type Request struct {
	Image         []byte
	CorrectedName string
	Context       models.UserContext
}

// PhotoSaver keeps a copy of each scanned image.
type PhotoSaver interface {
	Save(userID string, image []byte) (string, error)
}

// FoodAdvisor gives a verdict for a named food.
type FoodAdvisor interface {
	Advise(ctx context.Context, foodName string, tags models.Tags, uc models.UserContext) advisory.Response
}

type Classifier struct {
	chain   *Chain
	advisor FoodAdvisor
	photos  PhotoSaver
	logger  *slog.Logger
}

func New(chain *Chain, advisor FoodAdvisor, photos PhotoSaver, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{chain: chain, advisor: advisor, photos: photos, logger: logger}
}

// Result is a classification plus where the scanned photo was kept, if anywhere.
type Result struct {
	*models.ClassificationResult
	PhotoPath string
}

// Classify resolves a request to a food identity and tags. Upstream failures
// are absorbed by the recognizer chain; the error is non-nil only for an
// unusable image or a cancelled context.
func (c *Classifier) Classify(ctx context.Context, req Request) (*Result, error) {
	if name := strings.TrimSpace(req.CorrectedName); name != "" {
		result, err := c.classifyName(ctx, name, req.Context)
		if err != nil {
			return nil, err
		}
		return &Result{ClassificationResult: result}, nil
	}

	if !isImage(req.Image) {
		return nil, ErrUnusableImage
	}

	var photoPath string
	if c.photos != nil {
		path, err := c.photos.Save(req.Context.UserID, req.Image)
		if err != nil {
			c.logger.Warn("failed to save photo", slog.Any("error", err))
		} else {
			photoPath = path
		}
	}

	result, err := c.chain.Recognize(ctx, req.Image, req.Context)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to classify image: %w", err)
	}

	c.logger.Info("food classified",
		slog.String("food", result.Primary.Name),
		slog.Float64("confidence", result.Primary.Confidence),
		slog.String("source", string(result.Source)))

	return &Result{ClassificationResult: result, PhotoPath: photoPath}, nil
}

// classifyName handles a food name typed by the user after a rejected scan.
func (c *Classifier) classifyName(ctx context.Context, name string, uc models.UserContext) (*models.ClassificationResult, error) {
	tags := verdict.InferTags(name)
	result := &models.ClassificationResult{
		Primary: models.FoodResult{
			Name:       name,
			Confidence: 1.0,
			Tags:       tags,
		},
		Alternatives: []models.FoodResult{},
		Source:       models.SourceCorrected,
	}
	if c.advisor == nil {
		return result, nil
	}

	resp := c.advisor.Advise(ctx, name, tags, uc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case advisory.Parsed:
		result.Verdict = string(r.Verdict)
		result.Reasons = r.Reasons
	case advisory.Unparsable:
		c.logger.Debug("advisory reply unusable, using local rules", slog.String("food", name), slog.Int("raw_len", len(r.Raw)))
	}
	return result, nil
}

// heifBrands are the ISO-BMFF major brands used by HEIC and AVIF stills,
// which http.DetectContentType does not sniff.
var heifBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "mif1": true, "msf1": true,
	"avif": true, "avis": true,
}

func isImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		return heifBrands[string(data[8:12])]
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
