package usecase

import (
	"context"
	"time"

	"devmarket/internal/domain/entity"
	"devmarket/internal/domain/repository"
	"devmarket/internal/infrastructure/ratelimit"
	ws "devmarket/internal/infrastructure/websocket"
	"devmarket/pkg/errors"
	"devmarket/pkg/logger"
)

// SaleRecorder is the sales/orders collaborator. It is invoked exactly once,
// when a deal handshake completes.
type SaleRecorder interface {
	RecordCompletedSale(ctx context.Context, sale *entity.Sale) error
}

// RoomUseCase owns the room lifecycle: membership, the message log, admin
// mediation, and the seller/buyer deal handshake. Every mutating operation
// serializes on the room's lock and durably applies its state change before
// any event is emitted, so a client re-fetching after a notification never
// observes stale state.
type RoomUseCase struct {
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	sales       SaleRecorder
	wsManager   *ws.Manager
	rateLimiter *ratelimit.RateLimiter
	locks       *roomLocks
}

func NewRoomUseCase(
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	sales SaleRecorder,
	wsManager *ws.Manager,
) *RoomUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &RoomUseCase{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		sales:       sales,
		wsManager:   wsManager,
		rateLimiter: rateLimiter,
		locks:       newRoomLocks(),
	}
}

type OpenRoomInput struct {
	ProductID      string
	InitialMessage string
}

type PostMessageInput struct {
	RoomID string
	Body   string
}

type RoomResponse struct {
	*entity.Room
	Product        *entity.Product `json:"product,omitempty"`
	OtherUser      *entity.User    `json:"other_user,omitempty"`
	AllowedActions []entity.Action `json:"allowed_actions"`
}

// OpenRoom creates the negotiation room for (product, buyer), reusing an
// existing one on repeated contact.
func (uc *RoomUseCase) OpenRoom(ctx context.Context, buyerID string, input OpenRoomInput) (*RoomResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(buyerID, "open_room")
	if !allowed {
		logger.Warn("OpenRoom rate limited: user %s must wait %v", buyerID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before opening another room")
	}

	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if buyerID == product.SellerID {
		return nil, errors.BadRequest("You cannot open a room on your own listing", nil)
	}

	seller, err := uc.userRepo.GetByID(ctx, product.SellerID)
	if err != nil {
		return nil, errors.NotFound("Seller", err)
	}

	// Concurrent first contacts must not race lookup-then-create into two
	// rooms for the same (product, buyer). The room lock cannot cover a room
	// that does not exist yet, so serialize on the pair instead; room ids are
	// uuids, the "open:" keyspace never collides with them.
	unlock := uc.locks.Lock("open:" + input.ProductID + ":" + buyerID)
	defer unlock()

	room, err := uc.roomRepo.GetByProductAndBuyer(ctx, input.ProductID, buyerID)
	if err != nil {
		if !errors.Is(err, "NOT_FOUND") {
			return nil, err
		}

		room = &entity.Room{
			ProductID:     input.ProductID,
			BuyerID:       buyerID,
			SellerID:      product.SellerID,
			Status:        entity.RoomOpen,
			DealStatus:    entity.DealPending,
			LastMessageAt: time.Now(),
		}
		if err := uc.roomRepo.Create(ctx, room); err != nil {
			logger.Error("OpenRoom: failed to create room for product %s: %v", input.ProductID, err)
			return nil, err
		}
	}

	if input.InitialMessage != "" {
		if _, err := uc.PostMessage(ctx, buyerID, PostMessageInput{
			RoomID: room.ID,
			Body:   input.InitialMessage,
		}); err != nil {
			return nil, err
		}
		room, err = uc.roomRepo.GetByID(ctx, room.ID)
		if err != nil {
			return nil, err
		}
	}

	return &RoomResponse{
		Room:           room,
		Product:        product,
		OtherUser:      seller,
		AllowedActions: room.AllowedActions(buyerID),
	}, nil
}

// PostMessage appends to the room's log. The sender's role is captured at
// call time and stored on the message; the sequence number is assigned under
// the room lock, making insertion order the authoritative ordering.
func (uc *RoomUseCase) PostMessage(ctx context.Context, senderID string, input PostMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "post_message")
	if !allowed {
		logger.Warn("PostMessage rate limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	unlock := uc.locks.Lock(input.RoomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, input.RoomID)
	if err != nil {
		return nil, err
	}

	role := room.RoleOf(senderID)
	if role == entity.RoleNone {
		return nil, errors.Forbidden("Only the buyer, seller or attached admin may post in this room", nil)
	}
	if room.Status != entity.RoomOpen {
		return nil, errors.RoomClosed("Room is resolved; reopen it to continue the discussion")
	}

	room.MessageCount++
	message := &entity.Message{
		RoomID:     input.RoomID,
		SenderID:   senderID,
		SenderRole: role,
		Body:       input.Body,
		Seq:        room.MessageCount,
		CreatedAt:  time.Now(),
	}
	room.LastMessage = input.Body
	room.LastMessageAt = message.CreatedAt

	if err := uc.roomRepo.AppendMessage(ctx, room, message); err != nil {
		logger.Error("PostMessage: failed to append message to room %s: %v", input.RoomID, err)
		return nil, err
	}

	uc.wsManager.EmitToRoom(input.RoomID, ws.MessageEvent(message))

	return message, nil
}

// ListMessages returns the room's log oldest first. Safe to call repeatedly;
// two calls with no writes in between yield identical sequences.
func (uc *RoomUseCase) ListMessages(ctx context.Context, userID, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	if !room.IsParticipant(userID) {
		return nil, 0, errors.Forbidden("Only the buyer, seller or attached admin may read this room", nil)
	}

	return uc.roomRepo.ListMessages(ctx, roomID, limit, offset)
}

// RequestAdmin flags the room for admin attention. It never assigns an
// admin itself and repeating it is harmless.
func (uc *RoomUseCase) RequestAdmin(ctx context.Context, callerID, roomID string) error {
	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	role := room.RoleOf(callerID)
	if role != entity.RoleBuyer && role != entity.RoleSeller {
		return errors.Forbidden("Only the buyer or seller may request an admin", nil)
	}
	if room.AdminID != "" {
		return errors.AlreadyMediated("Room already has an admin attached")
	}

	if !room.AdminRequested {
		room.AdminRequested = true
		if err := uc.roomRepo.Update(ctx, room); err != nil {
			logger.Error("RequestAdmin: failed to flag room %s: %v", roomID, err)
			return err
		}
	}

	uc.notifyAdmins(ctx, room, callerID)
	return nil
}

func (uc *RoomUseCase) notifyAdmins(ctx context.Context, room *entity.Room, requesterID string) {
	admins, err := uc.userRepo.ListAdmins(ctx)
	if err != nil {
		logger.Warn("RequestAdmin: failed to list admins for room %s: %v", room.ID, err)
		return
	}

	event := ws.NewEvent(ws.EventAdminRequest, room.ID, map[string]string{
		"requested_by": requesterID,
		"product_id":   room.ProductID,
	})
	for _, admin := range admins {
		uc.wsManager.SendToUser(admin.ID, event)
	}
}

// JoinAsAdmin attaches an admin to the room. Mediation is sticky: once set,
// the admin field is never cleared.
func (uc *RoomUseCase) JoinAsAdmin(ctx context.Context, adminID, roomID string) (*entity.Room, error) {
	admin, err := uc.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	if !admin.IsAdmin() {
		return nil, errors.Forbidden("Admin capability required to mediate a room", nil)
	}

	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.AdminID != "" {
		return nil, errors.AlreadyMediated("Room already has an admin attached")
	}

	room.AdminID = adminID
	room.AdminRequested = false
	if err := uc.roomRepo.Update(ctx, room); err != nil {
		logger.Error("JoinAsAdmin: failed to attach admin to room %s: %v", roomID, err)
		return nil, err
	}

	uc.wsManager.EmitToRoom(roomID, ws.AdminJoinedEvent(roomID, adminID))

	return room, nil
}

// CloseRoom resolves the room. Only the attached admin may close, and only
// while the room is open; message traffic stops until a reopen.
func (uc *RoomUseCase) CloseRoom(ctx context.Context, callerID, roomID string) (*entity.Room, error) {
	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.AdminID == "" {
		return nil, errors.InvalidTransition("Room has no admin attached")
	}
	if callerID != room.AdminID {
		return nil, errors.InvalidTransition("Only the attached admin may close the room")
	}
	if room.Status != entity.RoomOpen {
		return nil, errors.InvalidTransition("Room is not open")
	}

	room.Status = entity.RoomResolved
	if err := uc.roomRepo.Update(ctx, room); err != nil {
		logger.Error("CloseRoom: failed to resolve room %s: %v", roomID, err)
		return nil, err
	}

	uc.wsManager.EmitToRoom(roomID, ws.NewEvent(ws.EventRoomClosed, roomID, map[string]string{"closed_by": callerID}))

	return room, nil
}

// ReopenRoom returns a resolved room to open. Buyer or seller only; the
// mediating admin cannot reopen on the parties' behalf.
func (uc *RoomUseCase) ReopenRoom(ctx context.Context, callerID, roomID string) (*entity.Room, error) {
	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	role := room.RoleOf(callerID)
	if role != entity.RoleBuyer && role != entity.RoleSeller {
		return nil, errors.InvalidTransition("Only the buyer or seller may reopen the room")
	}
	if room.Status != entity.RoomResolved {
		return nil, errors.InvalidTransition("Room is already open")
	}

	room.Status = entity.RoomOpen
	if err := uc.roomRepo.Update(ctx, room); err != nil {
		logger.Error("ReopenRoom: failed to reopen room %s: %v", roomID, err)
		return nil, err
	}

	uc.wsManager.EmitToRoom(roomID, ws.NewEvent(ws.EventRoomReopened, roomID, map[string]string{"reopened_by": callerID}))

	return room, nil
}

// MarkDealDone is the seller's half of the handshake: pending becomes
// seller_marked, handing the confirm action to the buyer.
func (uc *RoomUseCase) MarkDealDone(ctx context.Context, callerID, roomID string) (*entity.Room, error) {
	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if callerID != room.SellerID {
		return nil, errors.Forbidden("Only the seller may mark the deal as done", nil)
	}
	if room.Status != entity.RoomOpen {
		return nil, errors.InvalidState("Room is not open")
	}
	if room.DealStatus != entity.DealPending {
		return nil, errors.InvalidState("Deal is not pending")
	}

	room.DealStatus = entity.DealSellerMarked
	if err := uc.roomRepo.Update(ctx, room); err != nil {
		logger.Error("MarkDealDone: failed to update room %s: %v", roomID, err)
		return nil, err
	}

	uc.wsManager.EmitToRoom(roomID, ws.NewEvent(ws.EventDealMarked, roomID, map[string]string{"seller_id": callerID}))

	return room, nil
}

// ConfirmDeal is the buyer's half of the handshake: seller_marked becomes
// completed and the sales collaborator records the transaction. The deal
// status never regresses, so a failed sale write surfaces as an error
// without reverting the handshake; a retried confirm then reports
// INVALID_STATE instead of recording a second sale.
func (uc *RoomUseCase) ConfirmDeal(ctx context.Context, callerID, roomID string) (*entity.Room, error) {
	unlock := uc.locks.Lock(roomID)
	defer unlock()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if callerID != room.BuyerID {
		return nil, errors.Forbidden("Only the buyer may confirm the deal", nil)
	}
	if room.DealStatus != entity.DealSellerMarked {
		return nil, errors.InvalidState("Deal has not been marked done by the seller")
	}

	product, err := uc.productRepo.GetByID(ctx, room.ProductID)
	if err != nil {
		return nil, err
	}

	room.DealStatus = entity.DealCompleted
	if err := uc.roomRepo.Update(ctx, room); err != nil {
		logger.Error("ConfirmDeal: failed to update room %s: %v", roomID, err)
		return nil, err
	}

	sale := &entity.Sale{
		ProductID: room.ProductID,
		BuyerID:   room.BuyerID,
		SellerID:  room.SellerID,
		RoomID:    room.ID,
		Price:     product.Price,
	}
	recordErr := uc.sales.RecordCompletedSale(ctx, sale)
	if recordErr != nil {
		logger.Error("ConfirmDeal: deal completed for room %s but sale recording failed: %v", roomID, recordErr)
	}

	// The room is durably completed at this point, so subscribers learn of
	// it even when the sale write failed; the recorder is idempotent per
	// room and the missing record is replayed operationally.
	uc.wsManager.EmitToRoom(roomID, ws.NewEvent(ws.EventDealCompleted, roomID, map[string]string{
		"buyer_id": callerID,
		"sale_id":  sale.ID,
	}))

	if recordErr != nil {
		return nil, errors.Internal("Deal confirmed but the sale could not be recorded", recordErr)
	}

	return room, nil
}

// GetRoom returns the room with its product, counterparty and the caller's
// allowed actions.
func (uc *RoomUseCase) GetRoom(ctx context.Context, userID, roomID string) (*RoomResponse, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, errors.Forbidden("Only the buyer, seller or attached admin may view this room", nil)
	}

	resp := &RoomResponse{
		Room:           room,
		AllowedActions: room.AllowedActions(userID),
	}

	if product, err := uc.productRepo.GetByID(ctx, room.ProductID); err == nil {
		resp.Product = product
	} else {
		logger.Warn("GetRoom: product %s not found for room %s: %v", room.ProductID, roomID, err)
	}

	otherID := room.SellerID
	if userID == room.SellerID {
		otherID = room.BuyerID
	}
	if other, err := uc.userRepo.GetByID(ctx, otherID); err == nil {
		resp.OtherUser = other
	}

	return resp, nil
}

// ListRooms returns the caller's rooms, most recently active first.
func (uc *RoomUseCase) ListRooms(ctx context.Context, userID string, limit, offset int) ([]*RoomResponse, int64, error) {
	rooms, total, err := uc.roomRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp := &RoomResponse{
			Room:           room,
			AllowedActions: room.AllowedActions(userID),
		}
		if product, err := uc.productRepo.GetByID(ctx, room.ProductID); err == nil {
			resp.Product = product
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}

// ListAdminRequestedRooms returns rooms flagged for admin attention.
func (uc *RoomUseCase) ListAdminRequestedRooms(ctx context.Context, limit, offset int) ([]*entity.Room, int64, error) {
	return uc.roomRepo.ListAdminRequested(ctx, limit, offset)
}

// AllowedActions exposes the action projection for (caller, room).
func (uc *RoomUseCase) AllowedActions(ctx context.Context, userID, roomID string) ([]entity.Action, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, errors.Forbidden("Only the buyer, seller or attached admin may view this room", nil)
	}
	return room.AllowedActions(userID), nil
}

// CanSubscribe implements the websocket room authorizer: only participants
// may listen to a room's events.
func (uc *RoomUseCase) CanSubscribe(userID, roomID string) bool {
	room, err := uc.roomRepo.GetByID(context.Background(), roomID)
	if err != nil {
		return false
	}
	return room.IsParticipant(userID)
}
