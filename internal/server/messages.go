package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"illustro/internal/illustrate"
	"illustro/internal/store"
	"illustro/models"
)

type MessagesHandler struct {
	Store      store.ChatStore
	Dispatcher *illustrate.Dispatcher
	Renderer   *RenderState
}

func (h *MessagesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.GET("/:id/annotation", h.annotation)
	g.POST("/:id/illustrate", h.illustrate)
}

func (h *MessagesHandler) list(c echo.Context) error {
	items, err := h.Store.ListMessages(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.Message{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *MessagesHandler) create(c echo.Context) error {
	var req struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role := models.Role(req.Role)
	if role != models.RoleUser && role != models.RoleAssistant {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or assistant")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}
	msg, err := h.Store.AppendMessage(c.Request().Context(), role, req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	enqueued := false
	if role == models.RoleAssistant {
		enqueued = h.Dispatcher.Enqueue(msg)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  msg,
		"enqueued": enqueued,
	})
}

func (h *MessagesHandler) get(c echo.Context) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	msg, err := h.Store.GetMessage(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	loading, rendered := h.Renderer.Snapshot(id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  msg,
		"loading":  loading,
		"rendered": rendered,
	})
}

func (h *MessagesHandler) annotation(c echo.Context) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	ann, err := h.Store.GetAnnotation(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ann == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no annotation")
	}
	return c.JSON(http.StatusOK, ann)
}

// illustrate is the manual (re)trigger. Already-annotated messages are a
// 204 no-op; the pipeline's own guards make a duplicate trigger harmless.
func (h *MessagesHandler) illustrate(c echo.Context) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	msg, err := h.Store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if msg.Annotation != nil {
		return c.NoContent(http.StatusNoContent)
	}
	runID := uuid.NewString()
	if !h.Dispatcher.Enqueue(msg) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "trigger queue full")
	}
	log.Printf("illustrate trigger %s for message %d", runID, id)
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}

func messageID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	return id, nil
}
