package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	autherrors "travelbook/internal/auth/errors"
	"travelbook/pkg/config"
	"travelbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ResetsCollectionName = "PasswordResets"
)

type ResetRepository interface {
	Create(ctx context.Context, reset *model.PasswordReset) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error)
	// MarkUsed consumes the reset. It fails with ErrResetNotFound when the
	// reset was already used.
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	// DeleteStale removes resets that expired before now or were used.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

type mongoResetRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResetRepository(cfg *config.Config) ResetRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResetRepository{
		cfg:        cfg,
		collection: db.Collection(ResetsCollectionName),
	}
}

func (r *mongoResetRepository) Create(ctx context.Context, reset *model.PasswordReset) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reset.ID = ""
	result, err := r.collection.InsertOne(ctx, reset)
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reset.ID = oid.Hex()
	}
	return nil
}

func (r *mongoResetRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reset model.PasswordReset
	if err := r.collection.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&reset); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherrors.ErrResetNotFound
		}
		return nil, fmt.Errorf("failed to find password reset: %w", err)
	}
	return &reset, nil
}

func (r *mongoResetRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return autherrors.ErrResetNotFound
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "used_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"used_at": usedAt}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark password reset used: %w", err)
	}
	if result.MatchedCount == 0 {
		return autherrors.ErrResetNotFound
	}
	return nil
}

func (r *mongoResetRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": now}},
			bson.M{"used_at": bson.M{"$exists": true}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge password resets: %w", err)
	}
	return result.DeletedCount, nil
}
