package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure ClaimRepository implements the interface
var _ repositories.ClaimRepository = (*ClaimRepository)(nil)

// ClaimRepository handles MongoDB operations for claims
type ClaimRepository struct {
	collection *mongo.Collection
}

// NewClaimRepository creates a new ClaimRepository
func NewClaimRepository(db *mongo.Database) *ClaimRepository {
	return &ClaimRepository{
		collection: db.Collection("claims"),
	}
}

// EnsureIndexes creates the indexes used by feed and farmer queries.
func (r *ClaimRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "farmerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return mapError("create claim indexes", err)
}

// Create inserts a new claim. The claim id is generated by the caller and a
// CreatedAt already set (imports) is stored as given.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	claim.StampCreated(time.Now().UTC())
	_, err := r.collection.InsertOne(ctx, claim)
	return mapError("insert claim", err)
}

// FindByID finds a claim by its claim id
func (r *ClaimRepository) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&claim)
	if err != nil {
		return nil, mapError("find claim "+id, err)
	}
	return &claim, nil
}

// FindByStatuses returns claims in any of statuses, newest first
func (r *ClaimRepository) FindByStatuses(ctx context.Context, statuses []models.ClaimStatus) ([]*models.Claim, error) {
	filter := bson.M{"status": bson.M{"$in": statuses}}
	return r.find(ctx, filter)
}

// FindByFarmer returns a farmer's claims, newest first. Imported rows
// without a farmer id match on the contact number.
func (r *ClaimRepository) FindByFarmer(ctx context.Context, farmer models.FarmerRef) ([]*models.Claim, error) {
	if farmer.Contact == "" {
		return r.find(ctx, bson.M{"farmerId": farmer.ID})
	}
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"farmerId": farmer.ID},
		bson.M{"farmerId": bson.M{"$in": bson.A{"", nil}}, "farmerContact": farmer.Contact},
	}})
}

func (r *ClaimRepository) find(ctx context.Context, filter bson.M) ([]*models.Claim, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError("find claims", err)
	}
	defer cursor.Close(ctx)

	var claims []*models.Claim
	if err = cursor.All(ctx, &claims); err != nil {
		return nil, mapError("decode claims", err)
	}
	if claims == nil {
		claims = []*models.Claim{}
	}
	return claims, nil
}

// ApplyTransition performs a compare-and-set on status. The status change,
// annotations and history append happen in one document update.
func (r *ClaimRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Claim, error) {
	set := bson.M{"status": t.To}
	for k, v := range t.Annotations() {
		set[k] = v
	}
	filter := bson.M{"_id": t.ClaimID, "status": t.From}
	update := bson.M{
		"$set":         set,
		"$push":        bson.M{"statusHistory": t.Entry},
		"$currentDate": bson.M{"updatedAt": true},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var claim models.Claim
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&claim)
	if err == nil {
		return &claim, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mapError("update claim "+t.ClaimID, err)
	}

	// Nothing matched: either the claim is gone or someone else moved it.
	n, cerr := r.collection.CountDocuments(ctx, bson.M{"_id": t.ClaimID})
	if cerr != nil {
		return nil, mapError("count claim "+t.ClaimID, cerr)
	}
	if n == 0 {
		return nil, mapError("update claim "+t.ClaimID, mongo.ErrNoDocuments)
	}
	return nil, fmt.Errorf("claim %s is no longer %q: %w", t.ClaimID, t.From, models.ErrConflict)
}

type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  *models.Claim `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Watch opens a change stream over the claims collection. The returned
// channel is closed when ctx is cancelled or the stream fails.
func (r *ClaimRepository) Watch(ctx context.Context) (<-chan models.ClaimChange, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": []string{"insert", "update", "replace", "delete"}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := r.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, mapError("watch claims", err)
	}

	out := make(chan models.ClaimChange)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())

		for cs.Next(ctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				slog.Error("Failed to decode claim change", "error", err)
				continue
			}
			change, ok := toChange(ev)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			slog.Warn("Claim change stream stopped", "error", err)
		}
	}()
	return out, nil
}

func toChange(ev changeEvent) (models.ClaimChange, bool) {
	switch ev.OperationType {
	case "insert":
		if ev.FullDocument == nil {
			return models.ClaimChange{}, false
		}
		return models.ClaimChange{Kind: models.ChangeAdded, ID: ev.DocumentKey.ID, Claim: ev.FullDocument}, true
	case "update", "replace":
		// the document may already be gone by the time the lookup runs
		if ev.FullDocument == nil {
			return models.ClaimChange{Kind: models.ChangeRemoved, ID: ev.DocumentKey.ID}, true
		}
		return models.ClaimChange{Kind: models.ChangeModified, ID: ev.DocumentKey.ID, Claim: ev.FullDocument}, true
	case "delete":
		return models.ClaimChange{Kind: models.ChangeRemoved, ID: ev.DocumentKey.ID}, true
	}
	return models.ClaimChange{}, false
}
