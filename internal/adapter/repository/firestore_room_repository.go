package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"devmarket/internal/domain/entity"
	"devmarket/internal/domain/repository"
	"devmarket/pkg/errors"
	"devmarket/pkg/logger"
)

type firestoreRoomRepository struct {
	client *firestore.Client
}

func NewFirestoreRoomRepository(client *firestore.Client) repository.RoomRepository {
	return &firestoreRoomRepository{
		client: client,
	}
}

func (r *firestoreRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}

	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	_, err := r.client.Collection("rooms").Doc(room.ID).Set(ctx, room)
	if err != nil {
		return errors.Internal("Failed to create room", err)
	}

	return nil
}

func (r *firestoreRoomRepository) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	doc, err := r.client.Collection("rooms").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Room", nil)
		}
		return nil, errors.Internal("Failed to get room", err)
	}

	var room entity.Room
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse room data", err)
	}

	return &room, nil
}

func (r *firestoreRoomRepository) GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Room, error) {
	query := r.client.Collection("rooms").
		Where("productId", "==", productID).
		Where("buyerId", "==", buyerID).
		Limit(1)

	doc, err := query.Documents(ctx).Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Room", nil)
		}
		return nil, errors.Internal("Failed to query room by product and buyer", err)
	}

	var room entity.Room
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse room data", err)
	}

	return &room, nil
}

func (r *firestoreRoomRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error) {
	// A room's member set is fixed at creation (plus at most one admin), so
	// three indexed queries cover membership without an array field.
	var docs []*firestore.DocumentSnapshot
	for _, field := range []string{"buyerId", "sellerId", "adminId"} {
		batch, err := r.client.Collection("rooms").Where(field, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			logger.Error("Firestore error while fetching rooms for user %s: %v", userID, err)
			return nil, 0, errors.Internal("Failed to fetch rooms", err)
		}
		docs = append(docs, batch...)
	}

	rooms := make([]*entity.Room, 0, len(docs))
	for _, doc := range docs {
		var room entity.Room
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Skipping malformed room document %s: %v", doc.Ref.ID, err)
			continue
		}
		rooms = append(rooms, &room)
	}

	sortRoomsByActivity(rooms)
	total := int64(len(rooms))
	rooms = paginateRooms(rooms, limit, offset)

	return rooms, total, nil
}

func (r *firestoreRoomRepository) ListAdminRequested(ctx context.Context, limit, offset int) ([]*entity.Room, int64, error) {
	docs, err := r.client.Collection("rooms").Where("adminRequested", "==", true).Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to fetch admin-requested rooms", err)
	}

	rooms := make([]*entity.Room, 0, len(docs))
	for _, doc := range docs {
		var room entity.Room
		if err := doc.DataTo(&room); err != nil {
			continue
		}
		rooms = append(rooms, &room)
	}

	sortRoomsByActivity(rooms)
	total := int64(len(rooms))
	rooms = paginateRooms(rooms, limit, offset)

	return rooms, total, nil
}

func (r *firestoreRoomRepository) Update(ctx context.Context, room *entity.Room) error {
	room.UpdatedAt = time.Now()

	_, err := r.client.Collection("rooms").Doc(room.ID).Set(ctx, room)
	if err != nil {
		return errors.Internal("Failed to update room", err)
	}

	return nil
}

// AppendMessage writes the message and the updated room record in one
// Firestore transaction so the sequence counter never drifts from the log.
func (r *firestoreRoomRepository) AppendMessage(ctx context.Context, room *entity.Room, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	room.UpdatedAt = time.Now()

	roomRef := r.client.Collection("rooms").Doc(room.ID)
	msgRef := roomRef.Collection("messages").Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(roomRef, room); err != nil {
			return err
		}
		return tx.Set(msgRef, message)
	})
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreRoomRepository) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection("rooms").Doc(roomID).Collection("messages").OrderBy("seq", firestore.Asc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while counting messages for room %s: %v", roomID, err)
		return nil, 0, errors.Internal("Failed to count messages for room", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for room %s: %v", roomID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Error("Error parsing message data for room %s: %v", roomID, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func sortRoomsByActivity(rooms []*entity.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
}

func paginateRooms(rooms []*entity.Room, limit, offset int) []*entity.Room {
	start := offset
	if start > len(rooms) {
		start = len(rooms)
	}
	end := len(rooms)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return rooms[start:end]
}
