package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-chew-check/internal/advisory"
	"mcp-chew-check/internal/models"
	"mcp-chew-check/internal/verdict"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func nutsOnly() MockOption {
	return WithMockFoods([]MockFood{{"Nuts", 0.93, models.NewTags(models.TagHard)}})
}

func fastMock(opts ...MockOption) *MockRecognizer {
	return NewMockRecognizer(append([]MockOption{WithMockDelay(0)}, opts...)...)
}

func backend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

type fakeAdvisor struct {
	resp  advisory.Response
	calls int
}

func (f *fakeAdvisor) Advise(ctx context.Context, name string, tags models.Tags, uc models.UserContext) advisory.Response {
	f.calls++
	return f.resp
}

type fakePhotos struct {
	err   error
	saved int
}

func (f *fakePhotos) Save(userID string, image []byte) (string, error) {
	f.saved++
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/photo.jpg", nil
}

func TestClassify_RemoteSuccess(t *testing.T) {
	srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		assert.NoError(t, err)
		assert.Equal(t, pngImage, img)
		assert.True(t, req.UserContext.HasBraces)
		assert.Equal(t, []string{"noHard"}, req.UserContext.DietRestrictions)
		assert.Equal(t, []string{"n1", "n2", "n3"}, req.UserContext.RecentProcedures)

		_ = json.NewEncoder(w).Encode(analyzeResponse{
			FoodName:     "Pretzel",
			Confidence:   0.81,
			Verdict:      "avoid",
			Tags:         []string{"hard", "salty"},
			Reasons:      []string{"Hard texture can damage brackets and wires on your braces"},
			Alternatives: []string{"Bagel", "Bread"},
			Source:       "efficientnet",
		})
	})

	photos := &fakePhotos{}
	c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, time.Second, nil), fastMock()), nil, photos, nil)
	got, err := c.Classify(context.Background(), Request{
		Image: pngImage,
		Context: models.UserContext{
			HasBraces:        true,
			Restrictions:     []models.DietRestriction{{Type: models.NoHard}},
			RecentProcedures: []string{"n1", "n2", "n3", "n4"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.SourceRemote, got.Source)
	assert.Equal(t, "Pretzel", got.Primary.Name)
	assert.Equal(t, models.NewTags(models.TagHard), got.Primary.Tags)
	assert.Equal(t, "avoid", got.Verdict)
	require.Len(t, got.Alternatives, 2)
	assert.Equal(t, 0.6, got.Alternatives[0].Confidence)
	assert.Equal(t, "/tmp/photo.jpg", got.PhotoPath)
	assert.Equal(t, 1, photos.saved)
}

func TestClassify_ServerErrorFallsBackToMock(t *testing.T) {
	srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, time.Second, nil), fastMock()), nil, nil, nil)
	got, err := c.Classify(context.Background(), Request{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, models.SourceMock, got.Source)
	assert.NotEmpty(t, got.Primary.Name)
	assert.Empty(t, got.Verdict)
}

func TestClassify_MalformedBodyFallsBackToMock(t *testing.T) {
	for name, body := range map[string]string{
		"not-json":     "<html>oops</html>",
		"missing-name": `{"confidence": 0.5, "tags": ["hard"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, time.Second, nil), fastMock()), nil, nil, nil)
			got, err := c.Classify(context.Background(), Request{Image: pngImage})
			require.NoError(t, err)
			assert.Equal(t, models.SourceMock, got.Source)
		})
	}
}

func TestClassify_RemoteTimeoutFallsBackToMock(t *testing.T) {
	srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, 20*time.Millisecond, nil), fastMock()), nil, nil, nil)
	got, err := c.Classify(context.Background(), Request{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, models.SourceMock, got.Source)
}

func TestClassify_UnreachableBackendFallsBackToMock(t *testing.T) {
	c := New(NewChain(nil, NewRemoteRecognizer("http://127.0.0.1:1/analyze-food", time.Second, nil), fastMock()), nil, nil, nil)
	got, err := c.Classify(context.Background(), Request{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, models.SourceMock, got.Source)
}

func TestClassify_EndToEndNutsWithNoHard(t *testing.T) {
	srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, time.Second, nil), fastMock(nutsOnly())), nil, nil, nil)
	restrictions := []models.DietRestriction{{Type: models.NoHard}}
	got, err := c.Classify(context.Background(), Request{Image: pngImage, Context: models.UserContext{Restrictions: restrictions}})
	require.NoError(t, err)
	assert.Equal(t, "Nuts", got.Primary.Name)
	assert.Equal(t, 0.93, got.Primary.Confidence)

	explanation := verdict.Explain(got.ClassificationResult, restrictions)
	assert.Equal(t, models.VerdictAvoid, explanation.Verdict)
	assert.Contains(t, explanation.Reasons, "Hard texture can damage braces")
}

func TestClassify_UnusableImage(t *testing.T) {
	c := New(NewChain(nil, fastMock()), nil, nil, nil)

	_, err := c.Classify(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnusableImage)

	_, err = c.Classify(context.Background(), Request{Image: []byte("just some text")})
	assert.ErrorIs(t, err, ErrUnusableImage)
}

func TestClassify_HEIFImages(t *testing.T) {
	c := New(NewChain(nil, fastMock(nutsOnly())), nil, nil, nil)

	for name, img := range map[string]string{
		"heic": "\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic",
		"avif": "\x00\x00\x00\x1cftypavif\x00\x00\x00\x00avifmif1miaf",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), Request{Image: []byte(img)})
			require.NoError(t, err)
			assert.Equal(t, models.SourceMock, got.Source)
			assert.Equal(t, "Nuts", got.Primary.Name)
		})
	}

	_, err := c.Classify(context.Background(), Request{Image: []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2")})
	assert.ErrorIs(t, err, ErrUnusableImage)
}

func TestClassify_PhotoSaveFailureDoesNotBlock(t *testing.T) {
	photos := &fakePhotos{err: errors.New("disk full")}
	c := New(NewChain(nil, fastMock()), nil, photos, nil)
	got, err := c.Classify(context.Background(), Request{Image: pngImage})
	require.NoError(t, err)
	assert.Empty(t, got.PhotoPath)
	assert.Equal(t, 1, photos.saved)
}

func TestClassify_CancelledDuringMockDelay(t *testing.T) {
	srv := backend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := New(NewChain(nil, NewRemoteRecognizer(srv.URL, time.Second, nil), NewMockRecognizer(WithMockDelay(time.Second))), nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := c.Classify(ctx, Request{Image: pngImage})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify_CancelledBeforeStart(t *testing.T) {
	c := New(NewChain(nil, fastMock()), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Classify(ctx, Request{Image: pngImage})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify_CorrectedNameParsedAdvice(t *testing.T) {
	adv := &fakeAdvisor{resp: advisory.Parsed{Verdict: models.VerdictAvoid, Reasons: []string{"Sticky"}}}
	c := New(NewChain(nil, fastMock()), adv, nil, nil)

	got, err := c.Classify(context.Background(), Request{CorrectedName: "Salted Caramel"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceCorrected, got.Source)
	assert.Equal(t, "Salted Caramel", got.Primary.Name)
	assert.Equal(t, 1.0, got.Primary.Confidence)
	assert.True(t, got.Primary.Tags.Has(models.TagSticky))
	assert.Equal(t, "avoid", got.Verdict)
	assert.Equal(t, []string{"Sticky"}, got.Reasons)
	assert.Equal(t, 1, adv.calls)
}

func TestClassify_CorrectedNameUnparsableUsesLocalRules(t *testing.T) {
	adv := &fakeAdvisor{resp: advisory.Unparsable{Raw: "Sure, enjoy your soup!"}}
	c := New(NewChain(nil, fastMock()), adv, nil, nil)

	got, err := c.Classify(context.Background(), Request{CorrectedName: "Tomato soup"})
	require.NoError(t, err)
	assert.Empty(t, got.Verdict)
	assert.Empty(t, got.Reasons)

	explanation := verdict.Explain(got.ClassificationResult, nil)
	assert.Equal(t, models.VerdictCaution, explanation.Verdict)
}

func TestMockRecognizer(t *testing.T) {
	m := NewMockRecognizer(WithMockDelay(30*time.Millisecond), WithPicker(func(n int) int { return 0 }))

	start := time.Now()
	got, err := m.Recognize(context.Background(), pngImage, models.UserContext{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	assert.Equal(t, "Yogurt", got.Primary.Name)
	assert.Empty(t, got.Verdict)
	require.Len(t, got.Alternatives, 3)
	assert.Equal(t, "Apple", got.Alternatives[0].Name)
	assert.InDelta(t, 0.92*0.8, got.Alternatives[0].Confidence, 1e-9)
	for _, alt := range got.Alternatives {
		assert.NotEqual(t, "Yogurt", alt.Name)
	}
}

type failingRecognizer struct{ err error }

func (f failingRecognizer) Name() string { return "failing" }
func (f failingRecognizer) Recognize(ctx context.Context, image []byte, uc models.UserContext) (*models.ClassificationResult, error) {
	return nil, f.err
}

func TestChain_AllFail(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(nil, failingRecognizer{boom}, failingRecognizer{errors.New("bang")})
	_, err := chain.Recognize(context.Background(), pngImage, models.UserContext{})
	assert.ErrorIs(t, err, boom)
}
