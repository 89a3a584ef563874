package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/leafcheck/internal/model"
)

type stubClassifier struct {
	probs []float32
	err   error
	calls int
}

func (s *stubClassifier) Predict(_ context.Context, input model.Tensor) ([]float32, error) {
	s.calls++
	if len(input.Data) != model.ImageSize*model.ImageSize*model.Channels {
		return nil, errors.New("bad input size")
	}
	return s.probs, s.err
}

var testLabels = model.LabelSet{"healthy", "rust", "scab"}

func newTestEcho(classifier *stubClassifier) *echo.Echo {
	e := echo.New()
	NewHandler(nil, classifier, model.NewPreprocessor(model.ScaleZeroOne), testLabels).Register(e)
	return e
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 200, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "leaf.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict/image", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestEcho(&stubClassifier{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 3, body["labels"])
	assert.Equal(t, "scale_0_1", body["normalization"])
}

func TestPredict_RawTensor(t *testing.T) {
	t.Parallel()

	classifier := &stubClassifier{probs: []float32{0.1, 0.7, 0.2}}
	payload, err := json.Marshal(model.PredictionRequest{
		Image: make([]float32, model.ImageSize*model.ImageSize*model.Channels),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	newTestEcho(classifier).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rust", resp.Class)
	assert.Equal(t, 70, resp.Confidence)
	assert.Len(t, resp.Predictions, 3)
	assert.Equal(t, 1, classifier.calls)
}

func TestPredict_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"image": [`},
		{name: "wrong size", body: `{"image": [0.1, 0.2, 0.3]}`},
		{name: "missing image", body: `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			classifier := &stubClassifier{probs: []float32{1, 0, 0}}
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			newTestEcho(classifier).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, classifier.calls)
		})
	}
}

func TestPredictFromImage(t *testing.T) {
	t.Parallel()

	classifier := &stubClassifier{probs: []float32{0.9, 0.05, 0.05}}
	rec := httptest.NewRecorder()
	newTestEcho(classifier).ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Class)
	assert.Equal(t, 90, resp.Confidence)
}

func TestPredictFromImage_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing field", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		newTestEcho(&stubClassifier{}).ServeHTTP(rec, multipartRequest(t, "file", pngBytes(t)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{}
		rec := httptest.NewRecorder()
		newTestEcho(classifier).ServeHTTP(rec, multipartRequest(t, "image", []byte("plain text, not pixels")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, classifier.calls)
	})

	t.Run("inference failure", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{err: model.ErrInference}
		rec := httptest.NewRecorder()
		newTestEcho(classifier).ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("output width mismatch", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{probs: []float32{0.5, 0.5}}
		rec := httptest.NewRecorder()
		newTestEcho(classifier).ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
