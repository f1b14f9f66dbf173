package services

import (
	"context"
	"testing"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketplace(f *fixture) *MarketplaceService {
	return NewMarketplaceService(repositories.NewInMemoryMarketplaceRepository(), f.notifications, f.events, f.log)
}

func listingRequest(brand string, price float64) models.CreateListingRequest {
	return models.CreateListingRequest{
		Brand:       brand,
		Model:       "Flagship",
		Condition:   "good",
		Price:       price,
		Location:    "Porto",
		ContactInfo: "seller@example.com",
	}
}

func TestCreateListingDefaults(t *testing.T) {
	f := newFixture(t)
	svc := newMarketplace(f)
	seller := &models.User{ID: "alice", Name: "alice"}

	listing, err := svc.CreateListing(context.Background(), seller, listingRequest("Samsung", 300))
	require.NoError(t, err)
	assert.Equal(t, models.ListingPending, listing.Status)
	assert.Equal(t, "USD", listing.Currency)
	assert.NotNil(t, listing.Images)
	assert.Equal(t, "alice", listing.Seller.ID)
	assert.NotEmpty(t, listing.ID)
}

func TestListingBoardShowsApprovedOnly(t *testing.T) {
	f := newFixture(t)
	svc := newMarketplace(f)
	ctx := context.Background()
	seller := &models.User{ID: "alice", Name: "alice"}
	admin := &models.User{ID: "root", Name: "root", Role: models.RoleAdmin}

	cheap, err := svc.CreateListing(ctx, seller, listingRequest("Samsung", 150))
	require.NoError(t, err)
	pricey, err := svc.CreateListing(ctx, seller, listingRequest("Apple", 900))
	require.NoError(t, err)
	_, err = svc.CreateListing(ctx, seller, listingRequest("Nokia", 50))
	require.NoError(t, err)

	_, err = svc.Moderate(ctx, admin, cheap.ID, models.ListingApproved)
	require.NoError(t, err)
	_, err = svc.Moderate(ctx, admin, pricey.ID, models.ListingApproved)
	require.NoError(t, err)

	board, err := svc.Listings(ctx, models.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, board, 2)

	// Callers cannot widen the board to other statuses.
	board, err = svc.Listings(ctx, models.ListingFilter{Status: models.ListingPending})
	require.NoError(t, err)
	assert.Len(t, board, 2)

	board, err = svc.Listings(ctx, models.ListingFilter{MaxPrice: 500})
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, cheap.ID, board[0].ID)

	board, err = svc.Listings(ctx, models.ListingFilter{Brand: "Apple", MinPrice: 100})
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, pricey.ID, board[0].ID)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	mine, err := svc.SellerListings(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestModerationNotifiesSeller(t *testing.T) {
	f := newFixture(t)
	svc := newMarketplace(f)
	ctx := context.Background()
	seller := &models.User{ID: "alice", Name: "alice"}
	admin := &models.User{ID: "root", Name: "root", Role: models.RoleAdmin}

	listing, err := svc.CreateListing(ctx, seller, listingRequest("Samsung", 300))
	require.NoError(t, err)

	approved, err := svc.Moderate(ctx, admin, listing.ID, models.ListingApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ListingApproved, approved.Status)

	// Repeating the same decision does not notify twice.
	_, err = svc.Moderate(ctx, admin, listing.ID, models.ListingApproved)
	require.NoError(t, err)

	notes, total, err := f.notifications.GetByRecipientID(ctx, "alice", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationListingUpdate, notes[0].Type)
	assert.Equal(t, "root", notes[0].ActorID)
	assert.Equal(t, listing.ID, notes[0].TargetID)

	_, err = svc.MarkSold(ctx, &models.User{ID: "bob"}, listing.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	sold, err := svc.MarkSold(ctx, seller, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingSold, sold.Status)

	// Sellers are not notified about their own actions.
	count, err := f.notifications.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	assert.Equal(t, []string{
		events.ListingStatusChanged,
		events.ListingStatusChanged,
		events.ListingStatusChanged,
	}, f.events.Types())

	_, err = svc.Moderate(ctx, admin, "missing", models.ListingApproved)
	assert.ErrorIs(t, err, repositories.ErrListingNotFound)
}

func TestMarketplaceDeletePermissions(t *testing.T) {
	f := newFixture(t)
	svc := newMarketplace(f)
	ctx := context.Background()
	alice := &models.User{ID: "alice", Name: "alice"}
	bob := &models.User{ID: "bob", Name: "bob"}
	admin := &models.User{ID: "root", Name: "root", Role: models.RoleAdmin}

	listing, err := svc.CreateListing(ctx, alice, listingRequest("Samsung", 300))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteListing(ctx, bob, listing.ID), ErrForbidden)
	require.NoError(t, svc.DeleteListing(ctx, admin, listing.ID))
	assert.ErrorIs(t, svc.DeleteListing(ctx, alice, listing.ID), repositories.ErrListingNotFound)

	br, err := svc.CreateBuyerRequest(ctx, bob, models.CreateBuyerRequest{Model: "Pixel 7", BudgetRange: "200-300"})
	require.NoError(t, err)
	assert.Equal(t, "bob", br.Buyer.ID)

	requests, err := svc.BuyerRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	assert.ErrorIs(t, svc.DeleteBuyerRequest(ctx, alice, br.ID), ErrForbidden)
	require.NoError(t, svc.DeleteBuyerRequest(ctx, bob, br.ID))
	assert.ErrorIs(t, svc.DeleteBuyerRequest(ctx, bob, br.ID), repositories.ErrBuyerRequestNotFound)
}
