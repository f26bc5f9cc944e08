package entity

import "time"

// Message is an immutable entry in a room's append-only log. Seq is the
// per-room insertion sequence and is the authoritative ordering; CreatedAt
// is wall-clock time for display only.
type Message struct {
	ID         string    `json:"id" firestore:"id"`
	RoomID     string    `json:"room_id" firestore:"roomId"`
	SenderID   string    `json:"sender_id" firestore:"senderId"`
	SenderRole Role      `json:"sender_role" firestore:"senderRole"`
	Body       string    `json:"body" firestore:"body"`
	Seq        int64     `json:"seq" firestore:"seq"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
}
