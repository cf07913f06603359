// internal/classifier/remote.go
package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mcp-chew-check/internal/models"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	maxRecentProcedures  = 3
	// Alternatives arrive as bare names; they get this confidence.
	alternativeConfidence = 0.6
)

type analyzeRequest struct {
	ImageBase64 string             `json:"imageBase64"`
	UserContext analyzeUserContext `json:"userContext"`
}

type analyzeUserContext struct {
	HasBraces        bool     `json:"hasBraces"`
	DietRestrictions []string `json:"dietRestrictions"`
	RecentProcedures []string `json:"recentProcedures"`
}

type analyzeResponse struct {
	FoodName     string   `json:"foodName"`
	Confidence   float64  `json:"confidence"`
	Verdict      string   `json:"verdict"`
	Tags         []string `json:"tags"`
	Reasons      []string `json:"reasons"`
	Alternatives []string `json:"alternatives"`
	Source       string   `json:"source"`
}

// RemoteRecognizer posts the image to the food analysis backend.
type RemoteRecognizer struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

func NewRemoteRecognizer(url string, timeout time.Duration, httpClient *http.Client) *RemoteRecognizer {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RemoteRecognizer{httpClient: httpClient, url: url, timeout: timeout}
}

func (r *RemoteRecognizer) Name() string { return "remote" }

func (r *RemoteRecognizer) Recognize(ctx context.Context, image []byte, uc models.UserContext) (*models.ClassificationResult, error) {
	if r.url == "" {
		return nil, fmt.Errorf("no backend URL configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	procedures := uc.RecentProcedures
	if len(procedures) > maxRecentProcedures {
		procedures = procedures[:maxRecentProcedures]
	}
	body := analyzeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		UserContext: analyzeUserContext{
			HasBraces:        uc.HasBraces,
			DietRestrictions: uc.RestrictionNames(),
			RecentProcedures: append([]string{}, procedures...),
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResponse analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if strings.TrimSpace(apiResponse.FoodName) == "" {
		return nil, fmt.Errorf("response missing foodName")
	}

	alternatives := make([]models.FoodResult, 0, len(apiResponse.Alternatives))
	for _, name := range apiResponse.Alternatives {
		alternatives = append(alternatives, models.FoodResult{
			Name:       name,
			Confidence: alternativeConfidence,
			Tags:       models.NewTags(),
		})
	}

	return &models.ClassificationResult{
		Primary: models.FoodResult{
			Name:       apiResponse.FoodName,
			Confidence: clamp01(apiResponse.Confidence),
			Tags:       models.ParseTags(apiResponse.Tags),
		},
		Alternatives: alternatives,
		Verdict:      apiResponse.Verdict,
		Reasons:      apiResponse.Reasons,
		Source:       models.SourceRemote,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
