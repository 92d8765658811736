package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/pickwheel/internal/app"
	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

const maxImageBytes = 10 << 20

type Handler struct {
	wheels    *app.WheelService
	assistant *app.Assistant
	chat      *app.ChatService
	source    domain.DrawSource
}

func NewHandler(wheels *app.WheelService, assistant *app.Assistant, chat *app.ChatService, source domain.DrawSource) *Handler {
	return &Handler{wheels: wheels, assistant: assistant, chat: chat, source: source}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	v1 := e.Group("/v1")
	v1.POST("/spin", h.ComputeSpin)
	v1.GET("/wheels/presets", h.Presets)
	v1.POST("/wheels", h.CreateWheel)
	v1.GET("/wheels/:id", h.GetWheel)
	v1.PUT("/wheels/:id/options", h.SetOptions)
	v1.POST("/wheels/:id/spin", h.SpinWheel)
	v1.POST("/wheels/:id/suggest", h.SuggestOptions)
	v1.POST("/ocr", h.RecognizeText)
	v1.POST("/todos/extract", h.ExtractTodos)
	v1.POST("/chat/sessions", h.CreateSession)
	v1.GET("/chat/sessions/:id", h.GetSession)
	v1.POST("/chat/sessions/:id/messages", h.SendMessage)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) ComputeSpin(c echo.Context) error {
	var req ComputeSpinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}
	draw := h.source.Draw()
	if req.Draw != nil {
		if *req.Draw < 0 || *req.Draw >= 360 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "draw must be in [0, 360)"})
		}
		draw = *req.Draw
	}
	out, err := domain.ComputeSpin(req.CurrentRotation, req.OptionCount, draw)
	if err != nil {
		// No wheel state is involved, so a bad count is a bad request.
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Presets(c echo.Context) error {
	presets, err := h.wheels.Presets(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, presets)
}

func (h *Handler) CreateWheel(c echo.Context) error {
	var req CreateWheelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}
	w, err := h.wheels.Create(c.Request().Context(), app.CreateWheelRequest{Options: req.Options, Preset: req.Preset})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toWheelResponse(w))
}

func (h *Handler) GetWheel(c echo.Context) error {
	w, err := h.wheels.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toWheelResponse(w))
}

func (h *Handler) SetOptions(c echo.Context) error {
	var req SetOptionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}
	w, err := h.wheels.SetOptions(c.Param("id"), req.Options)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toWheelResponse(w))
}

// SpinWheel starts a spin and returns the animation target right away. The
// winner becomes visible on GET /v1/wheels/:id once the duration elapses.
func (h *Handler) SpinWheel(c echo.Context) error {
	id := c.Param("id")
	spin, err := h.wheels.Spin(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusAccepted, SpinResponse{
		WheelID:        id,
		TargetRotation: spin.TargetRotation,
		SliceAngle:     spin.SliceAngle,
		DurationMS:     spin.Duration.Milliseconds(),
	})
}

func (h *Handler) SuggestOptions(c echo.Context) error {
	var req SuggestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}
	w, err := h.wheels.Suggest(c.Request().Context(), c.Param("id"), app.SuggestFoodsRequest{
		Cuisine:   req.Cuisine,
		Location:  req.Location,
		Count:     req.Count,
		Exclude:   req.Exclude,
		WebSearch: req.WebSearch,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toWheelResponse(w))
}

func (h *Handler) RecognizeText(c echo.Context) error {
	img, err := formImage(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	if img == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image is required"})
	}
	rec, err := h.assistant.RecognizeText(c.Request().Context(), *img)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ExtractTodos(c echo.Context) error {
	img, err := formImage(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	todos, err := h.assistant.ExtractTodos(c.Request().Context(), app.ExtractTodosRequest{
		Text:  c.FormValue("text"),
		Image: img,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, TodosResponse{Todos: todos})
}

func (h *Handler) CreateSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, h.chat.Create())
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.chat.History(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// SendMessage streams the model reply as server-sent events: one "chunk"
// event with the running message per received chunk, then "done" with the
// final message, preceded by "error" if the stream failed.
func (h *Handler) SendMessage(c echo.Context) error {
	id := c.Param("id")
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
	}
	if _, err := h.chat.History(id); err != nil {
		return mapError(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	final, err := h.chat.Send(c.Request().Context(), id, req.Text, func(m domain.ChatMessage) {
		writeEvent(w, "chunk", m)
	})
	if err != nil {
		slog.Error("chat stream failed", "request_id", requestID(c), "error", err)
		writeEvent(w, "error", ErrorResponse{Error: publicMessage(err)})
	}
	writeEvent(w, "done", final)
	return nil
}

func writeEvent(w *echo.Response, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.Flush()
}

// formImage reads the optional "image" multipart field.
func formImage(c echo.Context) (*ports.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	if fh.Size > maxImageBytes {
		return nil, fmt.Errorf("image must be at most %d bytes", maxImageBytes)
	}
	data, err := readFile(fh)
	if err != nil {
		return nil, err
	}
	mimeType := fh.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("unsupported image type %q", mimeType)
	}
	return &ports.Image{Data: data, MIMEType: mimeType}, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	return data, nil
}

func toWheelResponse(w *domain.Wheel) WheelResponse {
	options := w.Options()
	slice, _ := domain.SliceAngle(len(options))
	return WheelResponse{
		ID:         w.ID(),
		Options:    options,
		SliceAngle: slice,
		State:      w.State(),
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "AI service is not configured"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "no usable answer, please retry"
	case errors.Is(err, domain.ErrNetworkOrService):
		return "upstream AI failure"
	default:
		return "internal error"
	}
}

func mapError(c echo.Context, err error) error {
	id := requestID(c)

	switch {
	case errors.Is(err, domain.ErrWheelNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrPresetNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadySpinning), errors.Is(err, domain.ErrTooFewOptions), errors.Is(err, domain.ErrTooManyOptions):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMissingCredential):
		slog.Warn("AI credential missing", "request_id", id)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrMalformedResponse), errors.Is(err, domain.ErrNetworkOrService):
		slog.Error("upstream AI failure", "request_id", id, "error", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: publicMessage(err)})
	default:
		slog.Error("internal error", "request_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
