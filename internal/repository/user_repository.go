package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
)

// UserRepo persists users. The base predicate hides deactivated accounts
// from every read, so a soft-deleted user is indistinguishable from a
// missing one.
type UserRepo struct {
	*Mongo[model.User]
	col *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	col := db.Collection("users")
	return &UserRepo{
		Mongo: NewMongo[model.User](col, bson.M{"active": bson.M{"$ne": false}}),
		col:   col,
	}
}

// Create inserts a new user. The password must already be hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (*model.User, error) {
	u.Normalize()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	out, err := r.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Duplicate("email already in use")
		}
		return nil, err
	}
	return out, nil
}

// GetByEmail fetches an active user by normalized email, hash included.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.col.FindOne(ctx, r.withBase(bson.M{"email": email})).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches an active user by hex id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.FindByID(ctx, id)
}

// UpdatePassword stores a new hash, bumps password_changed_at and clears any
// outstanding reset token. The changed-at stamp is backdated one second so a
// token issued in the same second as the change still verifies.
func (r *UserRepo) UpdatePassword(ctx context.Context, id string, hash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, r.withBase(bson.M{"_id": oid}), bson.M{
		"$set": bson.M{
			"password":            hash,
			"password_changed_at": now.Add(-time.Second),
			"updated_at":          now,
		},
		"$unset": bson.M{
			"password_reset_token":   "",
			"password_reset_expires": "",
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetResetToken stores the hash and expiry of a freshly issued reset token,
// replacing any prior one. Exactly one reset token is outstanding per user.
func (r *UserRepo) SetResetToken(ctx context.Context, id string, hash string, exp time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.col.UpdateOne(ctx, r.withBase(bson.M{"_id": oid}), bson.M{
		"$set": bson.M{
			"password_reset_token":   hash,
			"password_reset_expires": exp,
		},
	})
	return err
}

// ClearResetToken removes a stored reset token, e.g. when the reset email
// could not be dispatched.
func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.col.UpdateOne(ctx, r.withBase(bson.M{"_id": oid}), bson.M{
		"$unset": bson.M{
			"password_reset_token":   "",
			"password_reset_expires": "",
		},
	})
	return err
}

// FindByResetToken resolves the user holding an unexpired reset-token hash.
// Not-found and expired are deliberately indistinguishable.
func (r *UserRepo) FindByResetToken(ctx context.Context, hash string) (*model.User, error) {
	var u model.User
	err := r.col.FindOne(ctx, r.withBase(bson.M{
		"password_reset_token":   hash,
		"password_reset_expires": bson.M{"$gt": time.Now().UTC()},
	})).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Deactivate soft-deletes an account. The document stays in place but the
// base predicate hides it from every subsequent read.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"active": false, "updated_at": time.Now().UTC()},
	})
	return err
}
