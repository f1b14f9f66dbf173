package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	listingPageSize      = 100
	buyerRequestPageSize = 50
)

// MarketplaceService runs the phone listings board and the buyer wanted-ads.
type MarketplaceService struct {
	market        repositories.MarketplaceRepository
	notifications repositories.NotificationRepository
	events        events.Publisher
	log           *zap.Logger
}

// NewMarketplaceService creates a new MarketplaceService
func NewMarketplaceService(
	market repositories.MarketplaceRepository,
	notifications repositories.NotificationRepository,
	publisher events.Publisher,
	log *zap.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		market:        market,
		notifications: notifications,
		events:        publisher,
		log:           log.Named("marketplace"),
	}
}

// CreateListing files a listing for moderation.
func (s *MarketplaceService) CreateListing(ctx context.Context, seller *models.User, req models.CreateListingRequest) (*models.PhoneListing, error) {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}
	images := req.Images
	if images == nil {
		images = []string{}
	}
	listing := &models.PhoneListing{
		ID:          uuid.NewString(),
		Brand:       req.Brand,
		Model:       req.Model,
		Storage:     req.Storage,
		Condition:   req.Condition,
		Price:       req.Price,
		Currency:    currency,
		Location:    req.Location,
		ContactInfo: req.ContactInfo,
		Images:      images,
		Description: req.Description,
		Seller:      seller.ToCompact(),
		Status:      models.ListingPending,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.market.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}
	return listing, nil
}

// Listings returns the public board: approved listings only.
func (s *MarketplaceService) Listings(ctx context.Context, filter models.ListingFilter) ([]models.PhoneListing, error) {
	filter.Status = models.ListingApproved
	filter.SellerID = ""
	return s.market.ListListings(ctx, filter, listingPageSize)
}

// SellerListings returns every listing of sellerID regardless of status.
func (s *MarketplaceService) SellerListings(ctx context.Context, sellerID string) ([]models.PhoneListing, error) {
	return s.market.ListListings(ctx, models.ListingFilter{SellerID: sellerID}, listingPageSize)
}

// Pending returns the moderation queue.
func (s *MarketplaceService) Pending(ctx context.Context) ([]models.PhoneListing, error) {
	return s.market.ListListings(ctx, models.ListingFilter{Status: models.ListingPending}, listingPageSize)
}

func (s *MarketplaceService) Get(ctx context.Context, id string) (*models.PhoneListing, error) {
	return s.market.GetListing(ctx, id)
}

// MarkSold is the seller closing their own listing.
func (s *MarketplaceService) MarkSold(ctx context.Context, user *models.User, id string) (*models.PhoneListing, error) {
	listing, err := s.market.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Seller.ID != user.ID {
		return nil, ErrForbidden
	}
	return s.setStatus(ctx, user, listing, models.ListingSold)
}

// Moderate is an admin approving or rejecting a listing. The seller is
// notified of the outcome.
func (s *MarketplaceService) Moderate(ctx context.Context, admin *models.User, id string, status models.ListingStatus) (*models.PhoneListing, error) {
	listing, err := s.market.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, admin, listing, status)
}

func (s *MarketplaceService) setStatus(ctx context.Context, actor *models.User, listing *models.PhoneListing, status models.ListingStatus) (*models.PhoneListing, error) {
	if err := s.market.UpdateListingStatus(ctx, listing.ID, status); err != nil {
		return nil, err
	}
	previous := listing.Status
	listing.Status = status

	if actor.ID != listing.Seller.ID && previous != status {
		n := &models.Notification{
			Type:        models.NotificationListingUpdate,
			ActorID:     actor.ID,
			RecipientID: listing.Seller.ID,
			TargetID:    listing.ID,
			TargetType:  "listing",
			Message:     fmt.Sprintf("Your %s %s listing is now %s", listing.Brand, listing.Model, status),
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			s.log.Warn("creating notification failed", zap.String("listing_id", listing.ID), zap.Error(err))
		}
	}
	if err := s.events.Publish(ctx, events.ListingStatusChanged, listing.ID, listing); err != nil {
		s.log.Warn("publishing event failed", zap.String("type", events.ListingStatusChanged), zap.Error(err))
	}
	return listing, nil
}

// DeleteListing removes a listing. Its seller and admins may delete it.
func (s *MarketplaceService) DeleteListing(ctx context.Context, user *models.User, id string) error {
	listing, err := s.market.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.Seller.ID != user.ID && !user.IsAdmin() {
		return ErrForbidden
	}
	return s.market.DeleteListing(ctx, id)
}

// CreateBuyerRequest posts a wanted-ad.
func (s *MarketplaceService) CreateBuyerRequest(ctx context.Context, buyer *models.User, req models.CreateBuyerRequest) (*models.BuyerRequest, error) {
	br := &models.BuyerRequest{
		ID:          uuid.NewString(),
		Buyer:       buyer.ToCompact(),
		Model:       req.Model,
		BudgetRange: req.BudgetRange,
		Condition:   req.Condition,
		Location:    req.Location,
		Description: req.Description,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.market.CreateBuyerRequest(ctx, br); err != nil {
		return nil, fmt.Errorf("creating buyer request: %w", err)
	}
	return br, nil
}

// BuyerRequests returns the latest wanted-ads.
func (s *MarketplaceService) BuyerRequests(ctx context.Context) ([]models.BuyerRequest, error) {
	return s.market.ListBuyerRequests(ctx, buyerRequestPageSize)
}

// DeleteBuyerRequest removes a wanted-ad. Its author and admins may delete it.
func (s *MarketplaceService) DeleteBuyerRequest(ctx context.Context, user *models.User, id string) error {
	br, err := s.market.GetBuyerRequest(ctx, id)
	if err != nil {
		return err
	}
	if br.Buyer.ID != user.ID && !user.IsAdmin() {
		return ErrForbidden
	}
	return s.market.DeleteBuyerRequest(ctx, id)
}
