package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// User is the sanitized account view the core consumes; credentials
// never leave the repository layer.
type User struct {
	Id          string    `bson:"_id"`
	Username    string    `bson:"username"`
	Locked      bool      `bson:"locked"`
	LastLoginAt time.Time `bson:"last_login_at"`
}

// UserRepository is the narrow lookup interface the core depends on.
type UserRepository interface {
	FindById(ctx context.Context, id string) (*User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(database *mongo.Database) MongoUserRepository {
	return MongoUserRepository{collection: database.Collection("users")}
}

// FindById returns nil without error when the account does not exist.
func (repository MongoUserRepository) FindById(ctx context.Context, id string) (*User, error) {
	var user User

	err := repository.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (repository MongoUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := repository.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login_at": time.Now()}},
	)

	return err
}
