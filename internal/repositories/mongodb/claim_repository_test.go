package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// Create stamps the claim before the insert, so an unreachable cluster still
// shows which timestamps would have been stored.
func TestCreateKeepsImportedCreatedAt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	repo := NewClaimRepository(client.Database("agriclaim_test"))

	exported := time.Date(2024, 5, 21, 9, 30, 0, 0, time.UTC)
	imported := &models.Claim{ID: "CLM1", Status: models.StatusSubmitted, CreatedAt: exported}
	assert.Error(t, repo.Create(ctx, imported))
	assert.Equal(t, exported, imported.CreatedAt)
	assert.Equal(t, exported, imported.UpdatedAt)

	fresh := &models.Claim{ID: "CLM2", Status: models.StatusSubmitted}
	before := time.Now().UTC()
	assert.Error(t, repo.Create(ctx, fresh))
	assert.False(t, fresh.CreatedAt.Before(before))
	assert.Equal(t, fresh.CreatedAt, fresh.UpdatedAt)
}
