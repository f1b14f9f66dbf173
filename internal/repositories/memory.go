package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
)

// In-memory implementations of the repositories the realtime paths depend
// on. They back the service and handler tests and keep the same error
// contract as the database implementations.

type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]models.User)}
}

func (r *InMemoryUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return ErrUserExists
		}
	}
	if _, ok := r.users[user.ID]; ok {
		return ErrUserExists
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *InMemoryUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, func(u models.User) bool { return u.ID == id })
}

func (r *InMemoryUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *InMemoryUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	return r.find(ctx, func(u models.User) bool { return u.FirebaseUID != "" && u.FirebaseUID == firebaseUID })
}

func (r *InMemoryUserRepository) find(ctx context.Context, match func(models.User) bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryUserRepository) sorted() []models.User {
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *InMemoryUserRepository) GetUsers(ctx context.Context, skip, limit int) ([]models.User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted()
	return page(all, skip, limit), int64(len(all)), nil
}

func (r *InMemoryUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *InMemoryUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = role
	r.users[id] = u
	return nil
}

func (r *InMemoryUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var out []models.User
	for _, u := range r.sorted() {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return page(out, 0, limit), nil
}

func (r *InMemoryUserRepository) CountUsers(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), ctx.Err()
}

// InMemoryFriendshipRepository keys requests by the canonical pair, which
// gives it the same at-most-one-row-per-pair guarantee as the unique index.
type InMemoryFriendshipRepository struct {
	mu       sync.RWMutex
	users    UserRepository
	requests map[string]models.FriendRequest // by pair key
}

func NewInMemoryFriendshipRepository(users UserRepository) *InMemoryFriendshipRepository {
	return &InMemoryFriendshipRepository{users: users, requests: make(map[string]models.FriendRequest)}
}

func (r *InMemoryFriendshipRepository) SendFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.ChatID(req.FromID, req.ToID)
	if existing, ok := r.requests[key]; ok {
		return existingRequestError(&existing)
	}
	req.PairKey = key
	req.Status = models.FriendRequestPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	req.UpdatedAt = req.CreatedAt
	r.requests[key] = *req
	return nil
}

func (r *InMemoryFriendshipRepository) GetFriendRequestByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.ID == id {
			out := req
			return &out, nil
		}
	}
	return nil, ErrFriendRequestNotFound
}

func (r *InMemoryFriendshipRepository) GetFriendRequestBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[models.ChatID(a, b)]
	if !ok {
		return nil, ErrFriendRequestNotFound
	}
	return &req, nil
}

func (r *InMemoryFriendshipRepository) filter(match func(models.FriendRequest) bool) []models.FriendRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.FriendRequest{}
	for _, req := range r.requests {
		if match(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *InMemoryFriendshipRepository) GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.filter(func(f models.FriendRequest) bool {
		return f.ToID == userID && f.Status == models.FriendRequestPending
	}), ctx.Err()
}

func (r *InMemoryFriendshipRepository) GetOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.filter(func(f models.FriendRequest) bool {
		return f.FromID == userID && f.Status == models.FriendRequestPending
	}), ctx.Err()
}

func (r *InMemoryFriendshipRepository) GetUserFriends(ctx context.Context, userID string) ([]models.User, error) {
	accepted := r.filter(func(f models.FriendRequest) bool {
		return f.Status == models.FriendRequestAccepted && (f.FromID == userID || f.ToID == userID)
	})
	friends := []models.User{}
	for _, f := range accepted {
		u, err := r.users.GetUserByID(ctx, f.Other(userID))
		if err != nil {
			continue
		}
		friends = append(friends, *u)
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Name < friends[j].Name })
	return friends, nil
}

func (r *InMemoryFriendshipRepository) AcceptFriendRequest(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, req := range r.requests {
		if req.ID == id && req.Status == models.FriendRequestPending {
			req.Status = models.FriendRequestAccepted
			req.UpdatedAt = time.Now()
			r.requests[key] = req
			return nil
		}
	}
	return ErrFriendRequestNotFound
}

func (r *InMemoryFriendshipRepository) DeleteFriendRequest(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, req := range r.requests {
		if req.ID == id {
			delete(r.requests, key)
			return nil
		}
	}
	return ErrFriendRequestNotFound
}

type InMemoryMessageRepository struct {
	mu       sync.RWMutex
	messages []models.DirectMessage
}

func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{}
}

func (r *InMemoryMessageRepository) CreateMessage(ctx context.Context, msg *models.DirectMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := *msg
	m.Participants = append([]string(nil), msg.Participants...)
	r.messages = append(r.messages, m)
	return nil
}

// newestFirst returns matching messages sorted by descending timestamp.
func (r *InMemoryMessageRepository) newestFirst(match func(models.DirectMessage) bool) []models.DirectMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.DirectMessage{}
	for _, m := range r.messages {
		if match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func hasParticipant(m models.DirectMessage, userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (r *InMemoryMessageRepository) GetConversation(ctx context.Context, chatID, participantID string, limit int) ([]models.DirectMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs := page(r.newestFirst(func(m models.DirectMessage) bool {
		return m.ChatID == chatID && hasParticipant(m, participantID)
	}), 0, limit)
	reverseMessages(msgs)
	return msgs, nil
}

func (r *InMemoryMessageRepository) GetRecentForParticipant(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page(r.newestFirst(func(m models.DirectMessage) bool {
		return hasParticipant(m, userID)
	}), 0, limit), nil
}

func (r *InMemoryMessageRepository) MarkRead(ctx context.Context, chatID, receiverID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.ChatID == chatID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

type InMemoryCallRepository struct {
	mu         sync.RWMutex
	calls      map[string]models.Call
	candidates []models.IceCandidate
}

func NewInMemoryCallRepository() *InMemoryCallRepository {
	return &InMemoryCallRepository{calls: make(map[string]models.Call)}
}

func (r *InMemoryCallRepository) CreateCall(ctx context.Context, call *models.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.ID] = *call
	return nil
}

func (r *InMemoryCallRepository) GetCallByID(ctx context.Context, id string) (*models.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	return &call, nil
}

func (r *InMemoryCallRepository) SetOffer(ctx context.Context, id string, offer *models.SessionDescription, at time.Time) (*models.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	if call.Status != models.CallRinging {
		return nil, ErrInvalidTransition
	}
	o := *offer
	call.Offer = &o
	call.UpdatedAt = at
	r.calls[id] = call
	return &call, nil
}

func (r *InMemoryCallRepository) Transition(ctx context.Context, id string, next models.CallStatus, answer *models.SessionDescription, at time.Time) (*models.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	if !call.Status.CanTransition(next) {
		return nil, ErrInvalidTransition
	}
	call.Status = next
	call.UpdatedAt = at
	if answer != nil {
		a := *answer
		call.Answer = &a
	}
	r.calls[id] = call
	return &call, nil
}

func (r *InMemoryCallRepository) listCalls(match func(models.Call) bool) []models.Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Call{}
	for _, c := range r.calls {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *InMemoryCallRepository) ListRinging(ctx context.Context, receiverID string) ([]models.Call, error) {
	return r.listCalls(func(c models.Call) bool {
		return c.ReceiverID == receiverID && c.Status == models.CallRinging
	}), ctx.Err()
}

func (r *InMemoryCallRepository) ListStaleRinging(ctx context.Context, before time.Time) ([]models.Call, error) {
	return r.listCalls(func(c models.Call) bool {
		return c.Status == models.CallRinging && c.Timestamp.Before(before)
	}), ctx.Err()
}

func (r *InMemoryCallRepository) CountByStatus(ctx context.Context, status models.CallStatus) (int64, error) {
	return int64(len(r.listCalls(func(c models.Call) bool { return c.Status == status }))), ctx.Err()
}

func (r *InMemoryCallRepository) AddCandidate(ctx context.Context, candidate *models.IceCandidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, *candidate)
	return nil
}

func (r *InMemoryCallRepository) ListCandidates(ctx context.Context, callID string, role models.CallRole) ([]models.IceCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.IceCandidate{}
	for _, c := range r.candidates {
		if c.CallID == callID && c.Role == role {
			out = append(out, c)
		}
	}
	return out, nil
}

type InMemoryPollRepository struct {
	mu    sync.Mutex
	polls map[string]models.Poll
}

func NewInMemoryPollRepository() *InMemoryPollRepository {
	return &InMemoryPollRepository{polls: make(map[string]models.Poll)}
}

func clonePoll(p models.Poll) models.Poll {
	p.Options = append([]models.PollOption(nil), p.Options...)
	p.VotedUserIDs = append([]string(nil), p.VotedUserIDs...)
	return p
}

func (r *InMemoryPollRepository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls[poll.ID] = clonePoll(*poll)
	return nil
}

func (r *InMemoryPollRepository) GetPollByID(ctx context.Context, id string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, ErrPollNotFound
	}
	out := clonePoll(p)
	return &out, nil
}

func (r *InMemoryPollRepository) ListPolls(ctx context.Context, status models.PollStatus, skip, limit int64) ([]models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Poll{}
	for _, p := range r.polls {
		if status == "" || p.Status == status {
			out = append(out, clonePoll(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, int(skip), int(limit)), nil
}

func (r *InMemoryPollRepository) UpdatePoll(ctx context.Context, poll *models.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[poll.ID]
	if !ok {
		return ErrPollNotFound
	}
	p.Question, p.Description = poll.Question, poll.Description
	p.QuestionImage, p.Category = poll.QuestionImage, poll.Category
	p.UpdatedAt = time.Now()
	r.polls[poll.ID] = p
	return nil
}

func (r *InMemoryPollRepository) UpdateStatus(ctx context.Context, id string, status models.PollStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return ErrPollNotFound
	}
	p.Status = status
	r.polls[id] = p
	return nil
}

func (r *InMemoryPollRepository) DeletePoll(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.polls[id]; !ok {
		return ErrPollNotFound
	}
	delete(r.polls, id)
	return nil
}

func (r *InMemoryPollRepository) Vote(ctx context.Context, pollID, optionID, userID string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[pollID]
	if !ok {
		return nil, ErrPollNotFound
	}
	if p.Status != models.PollActive || !p.HasOption(optionID) || p.HasVoted(userID) {
		return nil, voteRejection(&p, optionID, userID)
	}
	p = clonePoll(p)
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			p.Options[i].Votes++
		}
	}
	p.TotalVotes++
	p.VotedUserIDs = append(p.VotedUserIDs, userID)
	p.UpdatedAt = time.Now()
	r.polls[pollID] = p
	out := clonePoll(p)
	return &out, nil
}

func (r *InMemoryPollRepository) CountByStatus(ctx context.Context, status models.PollStatus) (int64, error) {
	polls, err := r.ListPolls(ctx, status, 0, 0)
	return int64(len(polls)), err
}

type InMemoryNotificationRepository struct {
	mu     sync.RWMutex
	nextID uint
	items  []models.Notification
}

func NewInMemoryNotificationRepository() *InMemoryNotificationRepository {
	return &InMemoryNotificationRepository{}
}

func (r *InMemoryNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.items = append(r.items, *n)
	return nil
}

func (r *InMemoryNotificationRepository) forRecipient(recipientID string) []models.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *InMemoryNotificationRepository) GetByRecipientID(ctx context.Context, recipientID string, pageNum, limit int) ([]models.Notification, int64, error) {
	all := r.forRecipient(recipientID)
	return page(all, (pageNum-1)*limit, limit), int64(len(all)), ctx.Err()
}

func (r *InMemoryNotificationRepository) GetGrouped(ctx context.Context, recipientID string, now time.Time) (*GroupedNotifications, error) {
	return groupNotifications(page(r.forRecipient(recipientID), 0, groupedLimit), now), ctx.Err()
}

func (r *InMemoryNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	for _, item := range r.forRecipient(recipientID) {
		if !item.IsRead {
			n++
		}
	}
	return n, ctx.Err()
}

func (r *InMemoryNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == notificationID && r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (r *InMemoryNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
		}
	}
	return nil
}

// page slices items[skip:skip+limit]; limit <= 0 means no limit.
func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type InMemoryMarketplaceRepository struct {
	mu       sync.RWMutex
	listings map[string]models.PhoneListing
	requests map[string]models.BuyerRequest
}

func NewInMemoryMarketplaceRepository() *InMemoryMarketplaceRepository {
	return &InMemoryMarketplaceRepository{
		listings: make(map[string]models.PhoneListing),
		requests: make(map[string]models.BuyerRequest),
	}
}

func (r *InMemoryMarketplaceRepository) CreateListing(ctx context.Context, listing *models.PhoneListing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = *listing
	return nil
}

func (r *InMemoryMarketplaceRepository) GetListing(ctx context.Context, id string) (*models.PhoneListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return &l, nil
}

func listingMatches(l models.PhoneListing, f models.ListingFilter) bool {
	switch {
	case f.Status != "" && l.Status != f.Status,
		f.Brand != "" && l.Brand != f.Brand,
		f.Condition != "" && l.Condition != f.Condition,
		f.SellerID != "" && l.Seller.ID != f.SellerID,
		f.MinPrice > 0 && l.Price < f.MinPrice,
		f.MaxPrice > 0 && l.Price > f.MaxPrice:
		return false
	}
	return true
}

func (r *InMemoryMarketplaceRepository) ListListings(ctx context.Context, filter models.ListingFilter, limit int64) ([]models.PhoneListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.PhoneListing{}
	for _, l := range r.listings {
		if listingMatches(l, filter) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, 0, int(limit)), nil
}

func (r *InMemoryMarketplaceRepository) UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.Status = status
	r.listings[id] = l
	return nil
}

func (r *InMemoryMarketplaceRepository) DeleteListing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return ErrListingNotFound
	}
	delete(r.listings, id)
	return ctx.Err()
}

func (r *InMemoryMarketplaceRepository) CountListings(ctx context.Context, status models.ListingStatus) (int64, error) {
	ls, err := r.ListListings(ctx, models.ListingFilter{Status: status}, 0)
	return int64(len(ls)), err
}

func (r *InMemoryMarketplaceRepository) CreateBuyerRequest(ctx context.Context, req *models.BuyerRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = *req
	return nil
}

func (r *InMemoryMarketplaceRepository) GetBuyerRequest(ctx context.Context, id string) (*models.BuyerRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrBuyerRequestNotFound
	}
	return &req, ctx.Err()
}

func (r *InMemoryMarketplaceRepository) ListBuyerRequests(ctx context.Context, limit int64) ([]models.BuyerRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.BuyerRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, 0, int(limit)), ctx.Err()
}

func (r *InMemoryMarketplaceRepository) DeleteBuyerRequest(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return ErrBuyerRequestNotFound
	}
	delete(r.requests, id)
	return ctx.Err()
}
