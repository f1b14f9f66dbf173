package repositories

import (
	"context"
	"errors"

	"github.com/bigyann/lumina/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MarketplaceRepository stores phone listings and buyer requests.
type MarketplaceRepository interface {
	CreateListing(ctx context.Context, listing *models.PhoneListing) error
	GetListing(ctx context.Context, id string) (*models.PhoneListing, error)
	ListListings(ctx context.Context, filter models.ListingFilter, limit int64) ([]models.PhoneListing, error)
	UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus) error
	DeleteListing(ctx context.Context, id string) error
	CountListings(ctx context.Context, status models.ListingStatus) (int64, error)

	CreateBuyerRequest(ctx context.Context, req *models.BuyerRequest) error
	GetBuyerRequest(ctx context.Context, id string) (*models.BuyerRequest, error)
	ListBuyerRequests(ctx context.Context, limit int64) ([]models.BuyerRequest, error)
	DeleteBuyerRequest(ctx context.Context, id string) error
}

type MongoMarketplaceRepository struct {
	listings *mongo.Collection
	requests *mongo.Collection
}

func NewMongoMarketplaceRepository(db *mongo.Database) *MongoMarketplaceRepository {
	return &MongoMarketplaceRepository{
		listings: db.Collection("phone_listings"),
		requests: db.Collection("buyer_requests"),
	}
}

func (r *MongoMarketplaceRepository) CreateListing(ctx context.Context, listing *models.PhoneListing) error {
	_, err := r.listings.InsertOne(ctx, listing)
	return err
}

func (r *MongoMarketplaceRepository) GetListing(ctx context.Context, id string) (*models.PhoneListing, error) {
	var listing models.PhoneListing
	if err := r.listings.FindOne(ctx, bson.M{"_id": id}).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

func listingQuery(f models.ListingFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Brand != "" {
		q["brand"] = f.Brand
	}
	if f.Condition != "" {
		q["condition"] = f.Condition
	}
	if f.SellerID != "" {
		q["seller.id"] = f.SellerID
	}
	price := bson.M{}
	if f.MinPrice > 0 {
		price["$gte"] = f.MinPrice
	}
	if f.MaxPrice > 0 {
		price["$lte"] = f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}
	return q
}

func (r *MongoMarketplaceRepository) ListListings(ctx context.Context, filter models.ListingFilter, limit int64) ([]models.PhoneListing, error) {
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return findAll[models.PhoneListing](ctx, r.listings, listingQuery(filter), opts)
}

func (r *MongoMarketplaceRepository) UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus) error {
	res, err := r.listings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *MongoMarketplaceRepository) DeleteListing(ctx context.Context, id string) error {
	res, err := r.listings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *MongoMarketplaceRepository) CountListings(ctx context.Context, status models.ListingStatus) (int64, error) {
	return r.listings.CountDocuments(ctx, listingQuery(models.ListingFilter{Status: status}))
}

func (r *MongoMarketplaceRepository) CreateBuyerRequest(ctx context.Context, req *models.BuyerRequest) error {
	_, err := r.requests.InsertOne(ctx, req)
	return err
}

func (r *MongoMarketplaceRepository) GetBuyerRequest(ctx context.Context, id string) (*models.BuyerRequest, error) {
	var req models.BuyerRequest
	if err := r.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBuyerRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *MongoMarketplaceRepository) ListBuyerRequests(ctx context.Context, limit int64) ([]models.BuyerRequest, error) {
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return findAll[models.BuyerRequest](ctx, r.requests, bson.M{}, opts)
}

func (r *MongoMarketplaceRepository) DeleteBuyerRequest(ctx context.Context, id string) error {
	res, err := r.requests.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrBuyerRequestNotFound
	}
	return nil
}
