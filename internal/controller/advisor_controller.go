package controller

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"clinical-advisor-be/internal/dto"
	"clinical-advisor-be/internal/pkg/serverutils"
	"clinical-advisor-be/internal/service"
	"clinical-advisor-be/pkg/wire"
)

type IAdvisorController interface {
	RegisterRoutes(r fiber.Router)
	StreamChat(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
}

type advisorController struct {
	service service.IAdvisorService
}

func NewAdvisorController(service service.IAdvisorService) IAdvisorController {
	return &advisorController{service: service}
}

func (c *advisorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/advisor/v1")
	h.Post("/stream", c.StreamChat)
	h.Get("/session/:id", c.ShowSession)
}

// StreamChat validates the request, then hands the connection to a body
// stream writer that frames orchestrator events until the session reaches a
// terminal state. The request context doubles as the cancellation signal: it
// is done once the peer goes away, and a failed frame flush aborts the run
// even earlier.
func (c *advisorController) StreamChat(ctx *fiber.Ctx) error {
	var req dto.StreamChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "application/x-ndjson")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("X-Accel-Buffering", "no") // Disable proxy buffering

	// The fasthttp request context outlives the handler and is canceled when
	// the connection closes.
	reqCtx := ctx.Context()

	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		sink := wire.NewFrameWriter(w)
		// Terminal frames already went through the sink; the returned error
		// is logged inside the service.
		_, _ = c.service.StreamChat(reqCtx, &req, sink)
	}))

	return nil
}

func (c *advisorController) ShowSession(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}
