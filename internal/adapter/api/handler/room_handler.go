package handler

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/usecase"
	"devmarket/pkg/response"
	"devmarket/pkg/utils"
)

type RoomHandler struct {
	roomUseCase *usecase.RoomUseCase
}

func NewRoomHandler(roomUseCase *usecase.RoomUseCase) *RoomHandler {
	return &RoomHandler{
		roomUseCase: roomUseCase,
	}
}

type openRoomRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	InitialMessage string `json:"initial_message"`
}

type postMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// OpenRoom opens (or reuses) the buyer's negotiation room for a product
func (h *RoomHandler) OpenRoom(c echo.Context) error {
	var req openRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.OpenRoom(c.Request().Context(), userID, usecase.OpenRoomInput{
		ProductID:      req.ProductID,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, room)
}

// ListRooms returns the caller's rooms
func (h *RoomHandler) ListRooms(c echo.Context) error {
	userID := c.Get("uid").(string)
	limit, offset := utils.ListParams(c, 20)

	rooms, total, err := h.roomUseCase.ListRooms(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, rooms, total, limit, offset)
}

// GetRoom returns one room with the caller's allowed actions
func (h *RoomHandler) GetRoom(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.GetRoom(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// PostMessage appends a message to the room's log
func (h *RoomHandler) PostMessage(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.roomUseCase.PostMessage(c.Request().Context(), userID, usecase.PostMessageInput{
		RoomID: roomID,
		Body:   req.Body,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// ListMessages returns the room's log oldest first
func (h *RoomHandler) ListMessages(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)
	limit, offset := utils.ListParams(c, 50)

	messages, total, err := h.roomUseCase.ListMessages(c.Request().Context(), userID, roomID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, limit, offset)
}

// RequestAdmin flags the room for admin attention
func (h *RoomHandler) RequestAdmin(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.roomUseCase.RequestAdmin(c.Request().Context(), userID, roomID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Admin requested"})
}

// JoinAsAdmin attaches the calling admin to the room
func (h *RoomHandler) JoinAsAdmin(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.JoinAsAdmin(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// CloseRoom resolves the room
func (h *RoomHandler) CloseRoom(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.CloseRoom(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// ReopenRoom returns a resolved room to open
func (h *RoomHandler) ReopenRoom(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.ReopenRoom(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// MarkDealDone is the seller's half of the deal handshake
func (h *RoomHandler) MarkDealDone(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.MarkDealDone(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// ConfirmDeal is the buyer's half of the deal handshake
func (h *RoomHandler) ConfirmDeal(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.ConfirmDeal(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// ListAdminRequestedRooms returns rooms flagged for admin attention
func (h *RoomHandler) ListAdminRequestedRooms(c echo.Context) error {
	limit, offset := utils.ListParams(c, 20)

	rooms, total, err := h.roomUseCase.ListAdminRequestedRooms(c.Request().Context(), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, rooms, total, limit, offset)
}
