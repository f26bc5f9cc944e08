package entity

import "time"

// Sale is the record the room core hands to the sales collaborator when a
// deal handshake completes. Price is captured at confirmation time.
type Sale struct {
	ID        string    `json:"id" firestore:"id"`
	ProductID string    `json:"product_id" firestore:"productId"`
	BuyerID   string    `json:"buyer_id" firestore:"buyerId"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	RoomID    string    `json:"room_id" firestore:"roomId"`
	Price     float64   `json:"price" firestore:"price"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}
