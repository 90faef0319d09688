package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/ports/http/dto"
	"github.com/qrave1/RoomChat/internal/usecase"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditReader is the read side of the moderation log.
type AuditReader interface {
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.AuditEvent, error)
}

type RoomHandler struct {
	roomUsecase usecase.RoomUsecase
	audit       AuditReader
}

// NewRoomHandler - audit может быть nil, если журнал выключен
func NewRoomHandler(roomUsecase usecase.RoomUsecase, audit AuditReader) *RoomHandler {
	return &RoomHandler{roomUsecase: roomUsecase, audit: audit}
}

func (h *RoomHandler) Availability(c echo.Context) error {
	res, err := h.roomUsecase.CheckRoomAvailability(
		c.Request().Context(),
		c.Param("id"),
		c.QueryParam("username"),
	)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *RoomHandler) Capacity(c echo.Context) error {
	res, err := h.roomUsecase.CheckRoomCapacity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *RoomHandler) Audit(c echo.Context) error {
	if h.audit == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Code: "not_found", Error: "audit log is disabled"})
	}

	roomID := models.NormalizeRoomID(c.Param("id"))
	if roomID == "" {
		return h.writeError(c, apperr.ErrInvalidInput)
	}

	limit := defaultAuditLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return h.writeError(c, apperr.ErrInvalidInput)
		}
		limit = min(n, maxAuditLimit)
	}

	list, err := h.audit.ListByRoom(c.Request().Context(), roomID, limit)
	if err != nil {
		return h.writeError(c, err)
	}

	resp := dto.ListAuditResponse{
		RoomID:  roomID,
		Entries: make([]dto.AuditEntryResponse, 0, len(list)),
	}

	for _, e := range list {
		resp.Entries = append(resp.Entries, dto.NewAuditEntryResponseFromModel(e))
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) writeError(c echo.Context, err error) error {
	code := apperr.Code(err)

	status := http.StatusBadRequest
	switch code {
	case apperr.CodeInternal:
		slog.Error(
			"room request failed",
			slog.String("path", c.Path()),
			slog.Any(constant.Error, err),
		)
		status = http.StatusInternalServerError
	case "not_found":
		status = http.StatusNotFound
	}

	return c.JSON(status, dto.ErrorResponse{Code: code, Error: apperr.Message(err)})
}
