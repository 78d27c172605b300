package httpapi

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/emblem-match/internal/scorer"
)

type fakeScorer struct {
	res    scorer.Result
	err    error
	called int
}

func (f *fakeScorer) Score(ctx context.Context, img image.Image) (scorer.Result, error) {
	f.called++
	return f.res, f.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func createMultipartRequest(t *testing.T, fieldName, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if fieldName != "" {
		part, err := writer.CreateFormFile(fieldName, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/emblem/score", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func setupRouter(s Scorer) (*gin.Engine, *ScoreHandler) {
	gin.SetMode(gin.TestMode)
	h := NewScoreHandler(s, 0.35, nil)
	return NewRouter(h, nil), h
}

func TestScore_Positive(t *testing.T) {
	fake := &fakeScorer{res: scorer.Result{
		Score:  0.8,
		Levels: 2,
		Best: &scorer.Level{
			Size:     image.Pt(100, 100),
			Source:   image.Pt(100, 100),
			Template: image.Pt(20, 20),
			Loc:      image.Pt(40, 40),
			Value:    0.8,
		},
	}}
	router, _ := setupRouter(fake)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createMultipartRequest(t, "image", "scene.png", pngBytes(t, 100, 100)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"score": 0.8,
		"verdict": "positive",
		"threshold": 0.35,
		"attempted": true,
		"levels": 2,
		"box": {"x1": 40, "y1": 40, "x2": 60, "y2": 60}
	}`, w.Body.String())
	assert.Equal(t, 1, fake.called)
}

func TestScore_NotAttempted(t *testing.T) {
	router, _ := setupRouter(&fakeScorer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createMultipartRequest(t, "image", "tiny.png", pngBytes(t, 4, 4)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"score": 0,
		"verdict": "negative",
		"threshold": 0.35,
		"attempted": false,
		"levels": 0
	}`, w.Body.String())
}

func TestScore_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		content   []byte
		wantCode  int
		wantBody  string
	}{
		{"missing image", "", nil, http.StatusBadRequest, `{"error":"image file is required"}`},
		{"wrong field", "file", []byte("x"), http.StatusBadRequest, `{"error":"image file is required"}`},
		{"not an image", "image", []byte("plain text"), http.StatusBadRequest, `{"error":"file is not a decodable image"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeScorer{}
			router, _ := setupRouter(fake)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, createMultipartRequest(t, tt.fieldName, "upload.png", tt.content))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Zero(t, fake.called)
		})
	}
}

func TestScore_TooLarge(t *testing.T) {
	fake := &fakeScorer{}
	router, h := setupRouter(fake)
	h.MaxUploadBytes = 1024

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createMultipartRequest(t, "image", "big.png", make([]byte, 4096)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"image exceeds upload limit"}`, w.Body.String())
	assert.Zero(t, fake.called)
}

func TestScore_ScorerError(t *testing.T) {
	router, _ := setupRouter(&fakeScorer{err: errors.New("backend down")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, createMultipartRequest(t, "image", "scene.png", pngBytes(t, 30, 30)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to score image"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		method   string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, http.StatusOK, `{"status":"ok"}`},
		{http.MethodHead, http.StatusOK, ""},
		{http.MethodOptions, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			router := gin.New()
			router.Handle(tt.method, "/healthz", Health)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, "/healthz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			} else {
				assert.Empty(t, w.Body.String())
			}
		})
	}
}

func TestNewRouter_Routes(t *testing.T) {
	router, _ := setupRouter(&fakeScorer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/emblem/score", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
