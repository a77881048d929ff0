package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time checks to ensure the identity repositories implement the interfaces
var (
	_ repositories.FarmerRepository   = (*FarmerRepository)(nil)
	_ repositories.OfficialRepository = (*OfficialRepository)(nil)
)

// FarmerRepository handles MongoDB operations for farmer profiles
type FarmerRepository struct {
	collection *mongo.Collection
}

// NewFarmerRepository creates a new FarmerRepository
func NewFarmerRepository(db *mongo.Database) *FarmerRepository {
	return &FarmerRepository{
		collection: db.Collection("users"),
	}
}

// EnsureIndexes makes email unique so concurrent registrations cannot both win.
func (r *FarmerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return mapError("create user indexes", err)
}

// Create inserts a new farmer
func (r *FarmerRepository) Create(ctx context.Context, farmer *models.Farmer) error {
	farmer.Email = strings.ToLower(farmer.Email)
	farmer.CreatedAt = time.Now().UTC()
	farmer.UpdatedAt = farmer.CreatedAt
	_, err := r.collection.InsertOne(ctx, farmer)
	return mapError("insert farmer", err)
}

// FindByEmail finds a farmer by email
func (r *FarmerRepository) FindByEmail(ctx context.Context, email string) (*models.Farmer, error) {
	var farmer models.Farmer
	err := r.collection.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&farmer)
	if err != nil {
		return nil, mapError("find farmer by email", err)
	}
	return &farmer, nil
}

// FindByID finds a farmer by ID
func (r *FarmerRepository) FindByID(ctx context.Context, id string) (*models.Farmer, error) {
	var farmer models.Farmer
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&farmer)
	if err != nil {
		return nil, mapError("find farmer", err)
	}
	return &farmer, nil
}

// OfficialRepository handles MongoDB operations for official accounts
type OfficialRepository struct {
	collection *mongo.Collection
}

// NewOfficialRepository creates a new OfficialRepository
func NewOfficialRepository(db *mongo.Database) *OfficialRepository {
	return &OfficialRepository{
		collection: db.Collection("officials"),
	}
}

// Upsert creates the official or refreshes its name, role and password.
func (r *OfficialRepository) Upsert(ctx context.Context, official *models.Official) error {
	now := time.Now().UTC()
	filter := bson.M{"username": official.Username}
	update := bson.M{
		"$set": bson.M{
			"name":      official.Name,
			"role":      official.Role,
			"password":  official.Password,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       official.ID,
			"createdAt": now,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return mapError("upsert official", err)
}

// FindByUsername finds an official by username
func (r *OfficialRepository) FindByUsername(ctx context.Context, username string) (*models.Official, error) {
	var official models.Official
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&official)
	if err != nil {
		return nil, mapError("find official", err)
	}
	return &official, nil
}
