package repository

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"devmarket/internal/domain/entity"
	"devmarket/internal/domain/repository"
	"devmarket/pkg/errors"
)

type firestoreSaleRepository struct {
	client *firestore.Client
}

func NewFirestoreSaleRepository(client *firestore.Client) repository.SaleRepository {
	return &firestoreSaleRepository{
		client: client,
	}
}

func (r *firestoreSaleRepository) Create(ctx context.Context, sale *entity.Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	_, err := r.client.Collection("sales").Doc(sale.ID).Set(ctx, sale)
	if err != nil {
		return errors.Internal("Failed to create sale", err)
	}

	return nil
}

func (r *firestoreSaleRepository) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	doc, err := r.client.Collection("sales").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Sale", nil)
		}
		return nil, errors.Internal("Failed to get sale", err)
	}

	var sale entity.Sale
	if err := doc.DataTo(&sale); err != nil {
		return nil, errors.Internal("Failed to parse sale data", err)
	}

	return &sale, nil
}

func (r *firestoreSaleRepository) GetByRoomID(ctx context.Context, roomID string) (*entity.Sale, error) {
	doc, err := r.client.Collection("sales").Where("roomId", "==", roomID).Limit(1).Documents(ctx).Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Sale", nil)
		}
		return nil, errors.Internal("Failed to query sale by room", err)
	}

	var sale entity.Sale
	if err := doc.DataTo(&sale); err != nil {
		return nil, errors.Internal("Failed to parse sale data", err)
	}

	return &sale, nil
}

func (r *firestoreSaleRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Sale, int64, error) {
	var docs []*firestore.DocumentSnapshot
	for _, field := range []string{"buyerId", "sellerId"} {
		batch, err := r.client.Collection("sales").Where(field, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, errors.Internal("Failed to fetch sales", err)
		}
		docs = append(docs, batch...)
	}

	return collectSales(docs, limit, offset)
}

func (r *firestoreSaleRepository) List(ctx context.Context, limit, offset int) ([]*entity.Sale, int64, error) {
	docs, err := r.client.Collection("sales").OrderBy("createdAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to fetch sales", err)
	}

	return collectSales(docs, limit, offset)
}

func collectSales(docs []*firestore.DocumentSnapshot, limit, offset int) ([]*entity.Sale, int64, error) {
	sales := make([]*entity.Sale, 0, len(docs))
	for _, doc := range docs {
		var sale entity.Sale
		if err := doc.DataTo(&sale); err != nil {
			continue
		}
		sales = append(sales, &sale)
	}

	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})

	total := int64(len(sales))

	start := offset
	if start > len(sales) {
		start = len(sales)
	}
	end := len(sales)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return sales[start:end], total, nil
}
