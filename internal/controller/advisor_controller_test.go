package controller

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-advisor-be/internal/dto"
	"clinical-advisor-be/internal/pkg/serverutils"
	"clinical-advisor-be/pkg/stream"
	"clinical-advisor-be/pkg/wire"
)

type fakeAdvisorService struct {
	status  *dto.SessionStatusResponse
	events  []stream.Event
	lastReq *dto.StreamChatRequest
}

func (f *fakeAdvisorService) StreamChat(ctx context.Context, request *dto.StreamChatRequest, sink stream.EventSink) (*stream.Session, error) {
	f.lastReq = request
	for _, ev := range f.events {
		if err := sink.Emit(ev); err != nil {
			return nil, err
		}
	}
	return stream.NewSession(), nil
}

func (f *fakeAdvisorService) GetSession(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStatusResponse, error) {
	if f.status != nil && f.status.Id == sessionId {
		return f.status, nil
	}
	return nil, serverutils.ErrNotFound
}

func newTestApp(svc *fakeAdvisorService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewAdvisorController(svc).RegisterRoutes(api)
	return app
}

func TestShowSession(t *testing.T) {
	id := uuid.New()
	app := newTestApp(&fakeAdvisorService{
		status: &dto.SessionStatusResponse{Id: id, Title: "Amoxicillin dosing", Mode: "structured", State: "ended"},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/advisor/v1/session/"+id.String(), nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Amoxicillin dosing")
}

func TestShowSessionNotFound(t *testing.T) {
	app := newTestApp(&fakeAdvisorService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/advisor/v1/session/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestShowSessionInvalidId(t *testing.T) {
	app := newTestApp(&fakeAdvisorService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/advisor/v1/session/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStreamChatValidatesBody(t *testing.T) {
	app := newTestApp(&fakeAdvisorService{})

	req := httptest.NewRequest("POST", "/api/advisor/v1/stream", strings.NewReader(`{"history":[]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStreamChatRejectsUnknownMode(t *testing.T) {
	app := newTestApp(&fakeAdvisorService{})

	req := httptest.NewRequest("POST", "/api/advisor/v1/stream", strings.NewReader(`{"message":"dosing?","mode":"verbose"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStreamChatForwardsRequestedMode(t *testing.T) {
	svc := &fakeAdvisorService{
		events: []stream.Event{stream.EndEvent("s1")},
	}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/advisor/v1/stream", strings.NewReader(`{"message":"dosing?","mode":"fallback"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.lastReq)
	assert.Equal(t, "fallback", svc.lastReq.Mode)
}

func TestStreamChatEmitsFrames(t *testing.T) {
	svc := &fakeAdvisorService{
		events: []stream.Event{
			stream.BlockEvent("s1", &stream.Block{Element: stream.ElementParagraph, Text: "Take with food."}),
			stream.EndEvent("s1"),
		},
	}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/advisor/v1/stream", strings.NewReader(`{"message":"amoxicillin dosing"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	fr := wire.NewFrameReader(resp.Body)

	first, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, stream.EventStructuredBlock, first.Type)
	require.NotNil(t, first.Element)
	assert.Equal(t, "Take with food.", first.Element.Text)

	second, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, stream.EventStreamEnd, second.Type)

	_, err = fr.Next()
	assert.True(t, errors.Is(err, io.EOF))
}
