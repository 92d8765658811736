package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/randomtoy/pickwheel/internal/adapters/http"
	"github.com/randomtoy/pickwheel/internal/adapters/prompts"
	"github.com/randomtoy/pickwheel/internal/app"
	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

type fakeGenerator struct {
	reply  string
	err    error
	chunks []string
}

func (g *fakeGenerator) Generate(context.Context, ports.GenerateRequest) (string, error) {
	return g.reply, g.err
}

func (g *fakeGenerator) GenerateStream(context.Context, ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range g.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.err != nil {
			yield("", g.err)
		}
	}
}

func newServer(t *testing.T, gen *fakeGenerator) *echo.Echo {
	t.Helper()
	logger := slog.Default()
	store := prompts.NewEmbeddedStore()
	source := domain.DrawFunc(func() float64 { return 0 })

	norm := app.NewNormalizer(gen, app.NormalizerOptions{}, logger)
	assistant := app.NewAssistant(norm, store, logger)
	wheels := app.NewWheelService(source, 20*time.Millisecond, store, assistant, logger)
	t.Cleanup(wheels.Close)
	chat := app.NewChatService(gen, store, logger)

	e := echo.New()
	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))
	httpadapter.NewHandler(wheels, assistant, chat, source).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	e := newServer(t, &fakeGenerator{})
	rec := doJSON(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestComputeSpin(t *testing.T) {
	e := newServer(t, &fakeGenerator{})

	draw := 0.0
	rec := doJSON(e, http.MethodPost, "/v1/spin", httpadapter.ComputeSpinRequest{OptionCount: 4, Draw: &draw})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[domain.SpinOutcome](t, rec)
	assert.Equal(t, 3, out.WinningIndex)
	assert.InDelta(t, 1800.0, out.TargetRotation, 1e-9)

	rec = doJSON(e, http.MethodPost, "/v1/spin", httpadapter.ComputeSpinRequest{OptionCount: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/v1/spin", httpadapter.ComputeSpinRequest{OptionCount: domain.MaxOptions + 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := 360.0
	rec = doJSON(e, http.MethodPost, "/v1/spin", httpadapter.ComputeSpinRequest{OptionCount: 4, Draw: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWheelLifecycle(t *testing.T) {
	e := newServer(t, &fakeGenerator{})

	rec := doJSON(e, http.MethodPost, "/v1/wheels", httpadapter.CreateWheelRequest{Options: []string{"A", " ", "B", "C", "", "D"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	wheel := decode[httpadapter.WheelResponse](t, rec)
	assert.Len(t, wheel.Options, 4)
	assert.InDelta(t, 90.0, wheel.SliceAngle, 1e-9)

	rec = doJSON(e, http.MethodPost, "/v1/wheels/"+wheel.ID+"/spin", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	spin := decode[httpadapter.SpinResponse](t, rec)
	assert.InDelta(t, 1800.0, spin.TargetRotation, 1e-9)
	assert.Equal(t, int64(20), spin.DurationMS)

	rec = doJSON(e, http.MethodPost, "/v1/wheels/"+wheel.ID+"/spin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool {
		rec := doJSON(e, http.MethodGet, "/v1/wheels/"+wheel.ID, nil)
		var got httpadapter.WheelResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			return false
		}
		return !got.State.IsSpinning && got.State.Winner != nil && got.State.Winner.Text == "D"
	}, time.Second, 5*time.Millisecond)

	rec = doJSON(e, http.MethodPut, "/v1/wheels/"+wheel.ID+"/options", httpadapter.SetOptionsRequest{Options: []string{"X", "Y"}})
	require.Equal(t, http.StatusOK, rec.Code)
	wheel = decode[httpadapter.WheelResponse](t, rec)
	assert.Len(t, wheel.Options, 2)
	assert.Nil(t, wheel.State.Winner)

	rec = doJSON(e, http.MethodGet, "/v1/wheels/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWheelFromPresetAndSuggest(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n[\"Pho\",\"Ramen\",\"Curry\"]\n```"}
	e := newServer(t, gen)

	rec := doJSON(e, http.MethodGet, "/v1/wheels/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	presets := decode[[]ports.Preset](t, rec)
	require.NotEmpty(t, presets)

	rec = doJSON(e, http.MethodPost, "/v1/wheels", httpadapter.CreateWheelRequest{Preset: presets[0].ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	wheel := decode[httpadapter.WheelResponse](t, rec)
	assert.Len(t, wheel.Options, len(presets[0].Options))

	rec = doJSON(e, http.MethodPost, "/v1/wheels/"+wheel.ID+"/suggest", httpadapter.SuggestRequest{Count: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	wheel = decode[httpadapter.WheelResponse](t, rec)
	require.Len(t, wheel.Options, 3)
	assert.Equal(t, "Pho", wheel.Options[0].Text)

	gen.reply = "no idea"
	rec = doJSON(e, http.MethodPost, "/v1/wheels/"+wheel.ID+"/suggest", httpadapter.SuggestRequest{})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func multipartRequest(t *testing.T, path string, image []byte, text string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	if text != "" {
		require.NoError(t, mw.WriteField("text", text))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestRecognizeText(t *testing.T) {
	gen := &fakeGenerator{reply: `here you go: {"language":"en","text":"hi"} thanks`}
	e := newServer(t, gen)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/ocr", pngHeader, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.Recognition{Language: "en", Text: "hi"}, decode[domain.Recognition](t, rec))

	gen.reply = "garbage"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/ocr", pngHeader, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Recognition](t, rec)
	assert.True(t, got.Failed)
	assert.Equal(t, app.RecognitionFailedMessage, got.Message)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/ocr", nil, "no image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/ocr", []byte("plain text, not an image"), ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecognizeText_MissingCredential(t *testing.T) {
	e := newServer(t, &fakeGenerator{err: domain.ErrMissingCredential})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/ocr", pngHeader, ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExtractTodos(t *testing.T) {
	e := newServer(t, &fakeGenerator{reply: `[{"title":"Dentist","date":"2026-10-20"}]`})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/todos/extract", nil, "dentist on tuesday"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[httpadapter.TodosResponse](t, rec)
	assert.Equal(t, []domain.Todo{{Title: "Dentist", Date: "2026-10-20"}}, got.Todos)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/v1/todos/extract", nil, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreaming(t *testing.T) {
	e := newServer(t, &fakeGenerator{chunks: []string{"Hel", "lo"}})

	rec := doJSON(e, http.MethodPost, "/v1/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[app.ChatSession](t, rec)

	rec = doJSON(e, http.MethodPost, "/v1/chat/sessions/"+sess.ID+"/messages", httpadapter.SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: chunk\n"))
	assert.Contains(t, body, `"text":"Hel"`)
	assert.Contains(t, body, "event: done\n")
	assert.NotContains(t, body, "event: error\n")

	rec = doJSON(e, http.MethodGet, "/v1/chat/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[app.ChatSession](t, rec)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "Hello", hist.Messages[1].Text)
	assert.False(t, hist.Messages[1].IsStreaming)

	rec = doJSON(e, http.MethodPost, "/v1/chat/sessions/nope/messages", httpadapter.SendMessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodPost, "/v1/chat/sessions/"+sess.ID+"/messages", httpadapter.SendMessageRequest{Text: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreaming_Failure(t *testing.T) {
	e := newServer(t, &fakeGenerator{err: domain.ErrNetworkOrService})

	sess := decode[app.ChatSession](t, doJSON(e, http.MethodPost, "/v1/chat/sessions", nil))
	rec := doJSON(e, http.MethodPost, "/v1/chat/sessions/"+sess.ID+"/messages", httpadapter.SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "upstream AI failure")
	assert.Contains(t, body, "event: done\n")
}
