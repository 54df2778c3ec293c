package store

import (
	"context"

	"RProject/module/notify/model"
	"RProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoNotificationStore struct {
	coll *mongo.Collection
}

func NewMongoNotificationStore(db *mongo.Database) *MongoNotificationStore {
	return &MongoNotificationStore{coll: db.Collection(model.NotificationTableName)}
}

func (s *MongoNotificationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notify_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}},
		},
	})
	return errs.WrapMsg(err, "create notification indexes")
}

func (s *MongoNotificationStore) Insert(ctx context.Context, n *model.NotificationModel) error {
	_, err := s.coll.InsertOne(ctx, n)
	return errs.WrapMsg(err, "insert notification", "recipient", n.Recipient)
}

func (s *MongoNotificationStore) Find(ctx context.Context, notifyID string) (*model.NotificationModel, error) {
	var n model.NotificationModel
	err := s.coll.FindOne(ctx, bson.M{"notify_id": notifyID}).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("notification", "notifyID", notifyID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find notification", "notifyID", notifyID)
	}
	return &n, nil
}

func (s *MongoNotificationStore) ListForUser(ctx context.Context, username string) ([]*model.NotificationModel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"recipient": username}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list notifications", "user", username)
	}
	var out []*model.NotificationModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

func (s *MongoNotificationStore) CountUnread(ctx context.Context, username string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"recipient": username, "read": false})
	return n, errs.WrapMsg(err, "count unread", "user", username)
}

func (s *MongoNotificationStore) MarkRead(ctx context.Context, notifyID string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"notify_id": notifyID},
		bson.M{"$set": bson.M{"read": true}},
	)
	return errs.WrapMsg(err, "mark read", "notifyID", notifyID)
}

func (s *MongoNotificationStore) MarkAllRead(ctx context.Context, username string) error {
	_, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient": username, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return errs.WrapMsg(err, "mark all read", "user", username)
}

type MongoPushEndpointStore struct {
	coll *mongo.Collection
}

func NewMongoPushEndpointStore(db *mongo.Database) *MongoPushEndpointStore {
	return &MongoPushEndpointStore{coll: db.Collection(model.PushEndpointTableName)}
}

func (s *MongoPushEndpointStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
		},
	})
	return errs.WrapMsg(err, "create push endpoint indexes")
}

func (s *MongoPushEndpointStore) Register(ctx context.Context, ep *model.PushEndpointModel) error {
	_, err := s.coll.InsertOne(ctx, ep)
	if mongo.IsDuplicateKeyError(err) {
		return nil // re-registration is a no-op
	}
	return errs.WrapMsg(err, "register push endpoint", "user", ep.Username)
}

func (s *MongoPushEndpointStore) TokensForUser(ctx context.Context, username string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, errs.WrapMsg(err, "tokens for user", "user", username)
	}
	var rows []*model.PushEndpointModel
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.Wrap(err)
	}
	tokens := make([]string, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, r.Token)
	}
	return tokens, nil
}
