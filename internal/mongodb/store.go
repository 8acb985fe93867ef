// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package mongodb implements the user and reset token stores on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/models"
	"codeberg.org/oliverandrich/go-auth-api/internal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection       = "users"
	resetTokensCollection = "reset_tokens"

	connectTimeout = 10 * time.Second
)

// Store reports missing documents with repository.ErrNotFound and unique
// index violations with repository.ErrDuplicate.
type Store struct {
	client      *mongo.Client
	users       *mongo.Collection
	resetTokens *mongo.Collection
}

// Open connects to uri, verifies the connection and ensures the indexes the
// store relies on.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		users:       db.Collection(usersCollection),
		resetTokens: db.Collection(resetTokensCollection),
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	if _, err := s.resetTokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create reset_tokens index: %w", err)
	}

	return nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a user. The caller supplies the ID.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.users.InsertOne(ctx, user)
	return wrapError(err)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetUserByEmail retrieves a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountUsers returns the total number of users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountDocuments(ctx, bson.D{})
}

// ReplaceResetToken stores token as the only reset token of the user in a
// single upsert.
func (s *Store) ReplaceResetToken(ctx context.Context, userID, token string) error {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}

	doc := models.ResetToken{
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	filter := bson.D{{Key: "user_id", Value: userID}}
	opts := options.Replace().SetUpsert(true)

	_, err := s.resetTokens.ReplaceOne(ctx, filter, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted first; now the replace matches.
		_, err = s.resetTokens.ReplaceOne(ctx, filter, doc, opts)
	}
	return wrapError(err)
}

// GetResetToken retrieves the live reset token of a user. Used by tests.
func (s *Store) GetResetToken(ctx context.Context, userID string) (*models.ResetToken, error) {
	var token models.ResetToken
	err := s.resetTokens.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// ConsumeResetToken deletes the reset token matching both userID and token.
func (s *Store) ConsumeResetToken(ctx context.Context, userID, token string) error {
	res, err := s.resetTokens.DeleteOne(ctx, bson.D{
		{Key: "user_id", Value: userID},
		{Key: "token", Value: token},
	})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteUserResetTokens deletes all reset tokens of a user.
func (s *Store) DeleteUserResetTokens(ctx context.Context, userID string) error {
	_, err := s.resetTokens.DeleteMany(ctx, bson.D{{Key: "user_id", Value: userID}})
	return wrapError(err)
}

// CountResetTokens returns the number of reset tokens stored for a user.
// Used by tests.
func (s *Store) CountResetTokens(ctx context.Context, userID string) (int64, error) {
	return s.resetTokens.CountDocuments(ctx, bson.D{{Key: "user_id", Value: userID}})
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(repository.ErrDuplicate, err)
	default:
		return err
	}
}
