package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

// MongoStatusStore writes status and lastSeen onto existing user documents
// keyed by username. Users are owned by another service, so nothing is
// upserted.
type MongoStatusStore struct {
	coll userUpdater
}

// userUpdater is the part of *mongo.Collection the store writes through.
type userUpdater interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{},
		opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// NewMongoStatusStore creates a store writing to coll, usually the users
// collection of the chat backend.
func NewMongoStatusStore(coll *mongo.Collection) *MongoStatusStore {
	return &MongoStatusStore{coll: coll}
}

// DialMongo connects and pings the deployment at uri.
func DialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "mongo ping")
	}
	return client, nil
}

func userFilter(identity string) bson.M {
	return bson.M{"username": identity}
}

func statusUpdate(ev presence.Event) bson.M {
	return bson.M{"$set": bson.M{
		"status":   string(ev.Status),
		"lastSeen": ev.At.UTC(),
	}}
}

// PresenceChanged sets status and lastSeen on the user document. A user
// unknown to the collection is left alone.
func (s *MongoStatusStore) PresenceChanged(ctx context.Context, ev presence.Event) error {
	_, err := s.coll.UpdateOne(ctx, userFilter(ev.Identity), statusUpdate(ev), options.Update().SetUpsert(false))
	return errors.Wrapf(err, "mongo update %s", ev.Identity)
}
