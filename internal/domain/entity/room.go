package entity

import "time"

type RoomStatus string

const (
	RoomOpen     RoomStatus = "open"
	RoomResolved RoomStatus = "resolved"
)

type DealStatus string

const (
	DealPending      DealStatus = "pending"
	DealSellerMarked DealStatus = "seller_marked"
	DealCompleted    DealStatus = "completed"
)

// Role is a caller's relationship to a specific room, resolved at call time.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleNone   Role = ""
)

// Room is a negotiation channel scoped to one buyer, one seller and one
// product listing. AdminID is set at most once, when an admin joins to
// mediate; it is never cleared afterwards. MessageCount doubles as the
// message sequence counter and is only advanced under the room's
// serialization.
type Room struct {
	ID             string     `json:"id" firestore:"id"`
	ProductID      string     `json:"product_id" firestore:"productId"`
	BuyerID        string     `json:"buyer_id" firestore:"buyerId"`
	SellerID       string     `json:"seller_id" firestore:"sellerId"`
	AdminID        string     `json:"admin_id,omitempty" firestore:"adminId,omitempty"`
	Status         RoomStatus `json:"status" firestore:"status"`
	DealStatus     DealStatus `json:"deal_status" firestore:"dealStatus"`
	AdminRequested bool       `json:"admin_requested" firestore:"adminRequested"`
	MessageCount   int64      `json:"message_count" firestore:"messageCount"`
	LastMessage    string     `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt  time.Time  `json:"last_message_at" firestore:"lastMessageAt"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// RoleOf resolves a user's role in this room. The attached admin wins over
// buyer/seller so a mediating admin who also owns listings keeps admin
// capabilities inside the room.
func (r *Room) RoleOf(userID string) Role {
	switch userID {
	case "":
		return RoleNone
	case r.AdminID:
		return RoleAdmin
	case r.BuyerID:
		return RoleBuyer
	case r.SellerID:
		return RoleSeller
	}
	return RoleNone
}

// IsParticipant reports whether the user may read or post in this room.
func (r *Room) IsParticipant(userID string) bool {
	return r.RoleOf(userID) != RoleNone
}

// Action is a protocol operation a caller may currently perform on a room.
type Action string

const (
	ActionPostMessage  Action = "post_message"
	ActionMarkDealDone Action = "mark_deal_done"
	ActionConfirmDeal  Action = "confirm_deal"
	ActionRequestAdmin Action = "request_admin"
	ActionCloseRoom    Action = "close_room"
	ActionReopenRoom   Action = "reopen_room"
)

// AllowedActions derives the action set for a caller from the room's status
// and deal status. Handlers and clients share this projection instead of
// re-deriving button logic from the raw fields.
func (r *Room) AllowedActions(userID string) []Action {
	role := r.RoleOf(userID)
	if role == RoleNone {
		return nil
	}

	var actions []Action

	if r.Status == RoomOpen {
		actions = append(actions, ActionPostMessage)

		if role == RoleSeller && r.DealStatus == DealPending {
			actions = append(actions, ActionMarkDealDone)
		}
		if (role == RoleBuyer || role == RoleSeller) && r.AdminID == "" {
			actions = append(actions, ActionRequestAdmin)
		}
		if role == RoleAdmin {
			actions = append(actions, ActionCloseRoom)
		}
	} else if role == RoleBuyer || role == RoleSeller {
		actions = append(actions, ActionReopenRoom)
	}

	// Confirming is gated on the deal status only, not on the room status.
	if role == RoleBuyer && r.DealStatus == DealSellerMarked {
		actions = append(actions, ActionConfirmDeal)
	}

	return actions
}
