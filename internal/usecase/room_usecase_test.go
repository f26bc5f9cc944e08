package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmarket/internal/domain/entity"
	ws "devmarket/internal/infrastructure/websocket"
	"devmarket/pkg/errors"
)

type fakeRoomRepo struct {
	mu       sync.Mutex
	rooms    map[string]*entity.Room
	messages map[string][]*entity.Message
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:    make(map[string]*entity.Room),
		messages: make(map[string][]*entity.Message),
	}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *entity.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	stored := *room
	r.rooms[room.ID] = &stored
	return nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, errors.NotFound("Room", nil)
	}
	copied := *room
	return &copied, nil
}

func (r *fakeRoomRepo) GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.ProductID == productID && room.BuyerID == buyerID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, errors.NotFound("Room", nil)
}

func (r *fakeRoomRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Room
	for _, room := range r.rooms {
		if room.BuyerID == userID || room.SellerID == userID || room.AdminID == userID {
			copied := *room
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRoomRepo) ListAdminRequested(ctx context.Context, limit, offset int) ([]*entity.Room, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Room
	for _, room := range r.rooms {
		if room.AdminRequested {
			copied := *room
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRoomRepo) Update(ctx context.Context, room *entity.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; !ok {
		return errors.NotFound("Room", nil)
	}
	stored := *room
	r.rooms[room.ID] = &stored
	return nil
}

func (r *fakeRoomRepo) AppendMessage(ctx context.Context, room *entity.Room, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	storedRoom := *room
	r.rooms[room.ID] = &storedRoom
	storedMsg := *message
	r.messages[room.ID] = append(r.messages[room.ID], &storedMsg)
	return nil
}

func (r *fakeRoomRepo) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[roomID]
	total := int64(len(msgs))

	start := offset
	if start > len(msgs) {
		start = len(msgs)
	}
	end := len(msgs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := make([]*entity.Message, 0, end-start)
	for _, m := range msgs[start:end] {
		copied := *m
		out = append(out, &copied)
	}
	return out, total, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) ListAdmins(ctx context.Context) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var admins []*entity.User
	for _, u := range r.users {
		if u.IsAdmin() {
			copied := *u
			admins = append(admins, &copied)
		}
	}
	return admins, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*entity.Product
}

func newFakeProductRepo(products ...*entity.Product) *fakeProductRepo {
	repo := &fakeProductRepo{products: make(map[string]*entity.Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *fakeProductRepo) Create(ctx context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	copied := *product
	return &copied, nil
}

func (r *fakeProductRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Product, int64, error) {
	return nil, 0, nil
}

func (r *fakeProductRepo) ListBySellerID(ctx context.Context, sellerID string, limit, offset int) ([]*entity.Product, int64, error) {
	return nil, 0, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

type recorderStub struct {
	mu    sync.Mutex
	calls int
	sales []*entity.Sale
	err   error
}

func (s *recorderStub) RecordCompletedSale(ctx context.Context, sale *entity.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	sale.ID = uuid.New().String()
	copied := *sale
	s.sales = append(s.sales, &copied)
	return nil
}

func (s *recorderStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	uc       *RoomUseCase
	roomRepo *fakeRoomRepo
	recorder *recorderStub
	manager  *ws.Manager
	room     *entity.Room
}

// newFixture wires a room between buyer "b1" and seller "s1" over product
// "p1" (priced 250), with "a1" as an available admin user.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	roomRepo := newFakeRoomRepo()
	userRepo := newFakeUserRepo(
		&entity.User{ID: "b1", Username: "buyer", Role: "user"},
		&entity.User{ID: "s1", Username: "seller", Role: "user"},
		&entity.User{ID: "a1", Username: "admin", Role: "admin"},
	)
	productRepo := newFakeProductRepo(
		&entity.Product{ID: "p1", SellerID: "s1", Title: "CLI license", Price: 250, Status: "active"},
	)
	recorder := &recorderStub{}
	manager := ws.NewManager()

	uc := NewRoomUseCase(roomRepo, userRepo, productRepo, recorder, manager)

	room := &entity.Room{
		ProductID:  "p1",
		BuyerID:    "b1",
		SellerID:   "s1",
		Status:     entity.RoomOpen,
		DealStatus: entity.DealPending,
	}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	return &fixture{uc: uc, roomRepo: roomRepo, recorder: recorder, manager: manager, room: room}
}

func (f *fixture) reload(t *testing.T) *entity.Room {
	t.Helper()
	room, err := f.roomRepo.GetByID(context.Background(), f.room.ID)
	require.NoError(t, err)
	return room
}

func TestDealHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DealSellerMarked, room.DealStatus)

	room, err = f.uc.ConfirmDeal(ctx, "b1", f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DealCompleted, room.DealStatus)

	assert.Equal(t, 1, f.recorder.callCount())
	require.Len(t, f.recorder.sales, 1)
	sale := f.recorder.sales[0]
	assert.Equal(t, "p1", sale.ProductID)
	assert.Equal(t, "b1", sale.BuyerID)
	assert.Equal(t, "s1", sale.SellerID)
	assert.Equal(t, 250.0, sale.Price)
}

func TestMarkDealDoneRequiresSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.MarkDealDone(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Equal(t, entity.DealPending, f.reload(t).DealStatus)

	_, err = f.uc.MarkDealDone(ctx, "a1", f.room.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Equal(t, entity.DealPending, f.reload(t).DealStatus)
}

func TestConfirmDealRequiresSellerMarked(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ConfirmDeal(context.Background(), "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))
	assert.Equal(t, entity.DealPending, f.reload(t).DealStatus)
	assert.Equal(t, 0, f.recorder.callCount())
}

func TestConfirmDealRequiresBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	require.NoError(t, err)

	_, err = f.uc.ConfirmDeal(ctx, "s1", f.room.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Equal(t, entity.DealSellerMarked, f.reload(t).DealStatus)
	assert.Equal(t, 0, f.recorder.callCount())
}

func TestDealStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	require.NoError(t, err)
	_, err = f.uc.ConfirmDeal(ctx, "b1", f.room.ID)
	require.NoError(t, err)

	_, err = f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))

	_, err = f.uc.ConfirmDeal(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))

	assert.Equal(t, entity.DealCompleted, f.reload(t).DealStatus)
	assert.Equal(t, 1, f.recorder.callCount())
}

func TestConcurrentMarkDealDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.MarkDealDone(ctx, "s1", f.room.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, invalidState := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, "INVALID_STATE"):
			invalidState++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, invalidState)
	assert.Equal(t, entity.DealSellerMarked, f.reload(t).DealStatus)
}

func TestAdminMediationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Request flags the room without assigning anyone, and repeats are harmless.
	require.NoError(t, f.uc.RequestAdmin(ctx, "b1", f.room.ID))
	require.NoError(t, f.uc.RequestAdmin(ctx, "b1", f.room.ID))
	room := f.reload(t)
	assert.True(t, room.AdminRequested)
	assert.Empty(t, room.AdminID)

	room, err := f.uc.JoinAsAdmin(ctx, "a1", f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", room.AdminID)
	assert.False(t, room.AdminRequested)

	// Mediation is sticky.
	_, err = f.uc.JoinAsAdmin(ctx, "a1", f.room.ID)
	assert.True(t, errors.Is(err, "ALREADY_MEDIATED"))
	assert.Equal(t, "a1", f.reload(t).AdminID)

	err = f.uc.RequestAdmin(ctx, "s1", f.room.ID)
	assert.True(t, errors.Is(err, "ALREADY_MEDIATED"))

	room, err = f.uc.CloseRoom(ctx, "a1", f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoomResolved, room.Status)

	_, err = f.uc.PostMessage(ctx, "b1", PostMessageInput{RoomID: f.room.ID, Body: "hello?"})
	assert.True(t, errors.Is(err, "ROOM_CLOSED"))

	room, err = f.uc.ReopenRoom(ctx, "s1", f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoomOpen, room.Status)

	_, err = f.uc.PostMessage(ctx, "b1", PostMessageInput{RoomID: f.room.ID, Body: "hello again"})
	assert.NoError(t, err)
}

func TestJoinAsAdminRequiresAdminCapability(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.JoinAsAdmin(context.Background(), "b1", f.room.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Empty(t, f.reload(t).AdminID)
}

func TestCloseRoomTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No admin attached yet.
	_, err := f.uc.CloseRoom(ctx, "a1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))

	_, err = f.uc.JoinAsAdmin(ctx, "a1", f.room.ID)
	require.NoError(t, err)

	// Buyer and seller cannot close.
	_, err = f.uc.CloseRoom(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))
	_, err = f.uc.CloseRoom(ctx, "s1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))

	// Reopen while open is illegal.
	_, err = f.uc.ReopenRoom(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))

	_, err = f.uc.CloseRoom(ctx, "a1", f.room.ID)
	require.NoError(t, err)

	// The admin cannot reopen on the parties' behalf.
	_, err = f.uc.ReopenRoom(ctx, "a1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))

	// Closing twice is illegal.
	_, err = f.uc.CloseRoom(ctx, "a1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_TRANSITION"))
}

func TestPostMessageOrderingAndRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.JoinAsAdmin(ctx, "a1", f.room.ID)
	require.NoError(t, err)

	for _, post := range []struct {
		sender string
		body   string
	}{
		{"b1", "is this still available?"},
		{"s1", "yes, it is"},
		{"a1", "checking in on this thread"},
		{"b1", "great, I'll take it"},
	} {
		_, err := f.uc.PostMessage(ctx, post.sender, PostMessageInput{RoomID: f.room.ID, Body: post.body})
		require.NoError(t, err)
	}

	first, total, err := f.uc.ListMessages(ctx, "b1", f.room.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, first, 4)

	for i, msg := range first {
		assert.Equal(t, int64(i+1), msg.Seq)
	}
	assert.Equal(t, entity.RoleBuyer, first[0].SenderRole)
	assert.Equal(t, entity.RoleSeller, first[1].SenderRole)
	assert.Equal(t, entity.RoleAdmin, first[2].SenderRole)

	// Listing is restartable: a second read yields the same sequence.
	second, _, err := f.uc.ListMessages(ctx, "b1", f.room.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Seq, second[i].Seq)
	}
}

func TestPostMessageRejectsOutsiders(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.PostMessage(context.Background(), "a1", PostMessageInput{RoomID: f.room.ID, Body: "let me in"})
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, _, err = f.uc.ListMessages(context.Background(), "a1", f.room.ID, 0, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestOpenRoomReusesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.OpenRoom(ctx, "b1", OpenRoomInput{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, f.room.ID, first.Room.ID)

	second, err := f.uc.OpenRoom(ctx, "b1", OpenRoomInput{ProductID: "p1", InitialMessage: "still there?"})
	require.NoError(t, err)
	assert.Equal(t, first.Room.ID, second.Room.ID)
	assert.Equal(t, "still there?", second.Room.LastMessage)
}

func TestConcurrentOpenRoomCreatesSingleRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First contacts racing on the same (product, buyer) must converge on
	// one room; two rooms would split the log and permit two handshakes.
	const attempts = 5
	type result struct {
		room *RoomResponse
		err  error
	}
	results := make(chan result, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := f.uc.OpenRoom(ctx, "b2", OpenRoomInput{ProductID: "p1"})
			results <- result{room: room, err: err}
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[string]bool)
	for res := range results {
		require.NoError(t, res.err)
		ids[res.room.Room.ID] = true
	}
	assert.Len(t, ids, 1)

	f.roomRepo.mu.Lock()
	defer f.roomRepo.mu.Unlock()
	created := 0
	for _, room := range f.roomRepo.rooms {
		if room.BuyerID == "b2" && room.ProductID == "p1" {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestOpenRoomRejectsOwnListing(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.OpenRoom(context.Background(), "s1", OpenRoomInput{ProductID: "p1"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestAllowedActionsProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	actions, err := f.uc.AllowedActions(ctx, "s1", f.room.ID)
	require.NoError(t, err)
	assert.Contains(t, actions, entity.ActionPostMessage)
	assert.Contains(t, actions, entity.ActionMarkDealDone)
	assert.Contains(t, actions, entity.ActionRequestAdmin)
	assert.NotContains(t, actions, entity.ActionConfirmDeal)

	_, err = f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	require.NoError(t, err)

	actions, err = f.uc.AllowedActions(ctx, "b1", f.room.ID)
	require.NoError(t, err)
	assert.Contains(t, actions, entity.ActionConfirmDeal)
	assert.NotContains(t, actions, entity.ActionMarkDealDone)
	assert.NotContains(t, actions, entity.ActionCloseRoom)

	_, err = f.uc.JoinAsAdmin(ctx, "a1", f.room.ID)
	require.NoError(t, err)

	actions, err = f.uc.AllowedActions(ctx, "a1", f.room.ID)
	require.NoError(t, err)
	assert.Contains(t, actions, entity.ActionCloseRoom)
	assert.NotContains(t, actions, entity.ActionRequestAdmin)
}

func TestConfirmDealSurvivesRecorderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := &ws.Client{SessionID: "sess-1", UserID: "b1", Send: make(chan []byte, 16)}
	f.manager.Register(sub)
	f.manager.Subscribe(f.room.ID, sub)

	_, err := f.uc.MarkDealDone(ctx, "s1", f.room.ID)
	require.NoError(t, err)

	f.recorder.err = errors.Internal("ledger unavailable", nil)
	_, err = f.uc.ConfirmDeal(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INTERNAL_ERROR"))

	// The handshake never regresses; a retry reports the completed state
	// instead of recording a second sale.
	assert.Equal(t, entity.DealCompleted, f.reload(t).DealStatus)
	_, err = f.uc.ConfirmDeal(ctx, "b1", f.room.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))
	assert.Equal(t, 1, f.recorder.callCount())

	// The completion is durable, so subscribers still hear about it even
	// though the sale write failed.
	var types []string
	for len(sub.Send) > 0 {
		var event ws.Event
		require.NoError(t, json.Unmarshal(<-sub.Send, &event))
		types = append(types, event.Type)
	}
	assert.Contains(t, types, ws.EventDealCompleted)
}
