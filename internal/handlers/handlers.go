package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/leafcheck/internal/model"
	"github.com/Brownie44l1/leafcheck/internal/pipeline"
)

const maxUploadBytes int64 = 10 << 20

// Handler serves direct prediction requests without going through the
// messaging platform.
type Handler struct {
	logger       *slog.Logger
	classifier   pipeline.Classifier
	preprocessor *model.Preprocessor
	labels       model.LabelSet
}

func NewHandler(log *slog.Logger, classifier pipeline.Classifier, preprocessor *model.Preprocessor, labels model.LabelSet) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:       log.With(slog.String("handler", "predict")),
		classifier:   classifier,
		preprocessor: preprocessor,
		labels:       labels,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/predict", h.Predict)
	e.POST("/predict/image", h.PredictFromImage)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "healthy",
		"labels":        len(h.labels),
		"normalization": h.preprocessor.Normalization(),
	})
}

// Predict classifies an already normalized [1,224,224,3] tensor.
func (h *Handler) Predict(c echo.Context) error {
	var req model.PredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON")
	}

	tensor, err := model.TensorFromValues(req.Image)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.predict(c, tensor)
}

// PredictFromImage classifies an uploaded image (multipart field "image").
func (h *Handler) PredictFromImage(c echo.Context) error {
	header, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
	}
	if header.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("image too large: max %d bytes", maxUploadBytes))
	}
	file, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}
	defer file.Close()

	buf, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}
	h.logger.Debug("received upload", slog.String("filename", header.Filename), slog.Int64("size", header.Size))

	tensor, err := h.preprocessor.Preprocess(buf)
	if err != nil {
		if errors.Is(err, model.ErrDecode) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG, GIF")
		}
		return err
	}
	return h.predict(c, tensor)
}

func (h *Handler) predict(c echo.Context, tensor model.Tensor) error {
	probs, err := h.classifier.Predict(c.Request().Context(), tensor)
	if err != nil {
		h.logger.Error("prediction failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Prediction failed")
	}
	if len(probs) != len(h.labels) {
		h.logger.Error("prediction failed", slog.Int("outputs", len(probs)), slog.Int("labels", len(h.labels)))
		return echo.NewHTTPError(http.StatusInternalServerError, "Prediction failed")
	}
	return c.JSON(http.StatusOK, model.Response(probs, h.labels))
}
