package store

import (
	"context"
	"time"

	"RProject/logger"
	"RProject/module/chat/model"
	"RProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRoomStore struct {
	rooms *mongo.Collection
	parts *mongo.Collection
}

func NewMongoRoomStore(db *mongo.Database) *MongoRoomStore {
	return &MongoRoomStore{
		rooms: db.Collection(model.RoomTableName),
		parts: db.Collection(model.ParticipantTableName),
	}
}

// EnsureIndexes creates the uniqueness constraints the create paths rely
// on. Safe to call on every boot.
func (s *MongoRoomStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.rooms.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// partial: group rooms have no pair_key
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "pair_key", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	})
	if err != nil {
		return errs.WrapMsg(err, "create room indexes")
	}
	_, err = s.parts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
		},
	})
	return errs.WrapMsg(err, "create participant indexes")
}

func (s *MongoRoomStore) InsertRoom(ctx context.Context, room *model.RoomModel, parts []*model.ParticipantModel) error {
	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrConflict.WrapMsg("room exists", "pairKey", room.PairKey)
		}
		return errs.WrapMsg(err, "insert room", "roomID", room.RoomID)
	}
	for _, p := range parts {
		if _, err := s.parts.InsertOne(ctx, p); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue // participation is idempotent
			}
			s.compensateInsert(room.RoomID)
			return errs.WrapMsg(err, "insert participant", "roomID", p.RoomID, "user", p.Username)
		}
	}
	return nil
}

// compensateInsert removes a half-created room so its pair key cannot
// permanently shadow a usable row. Runs on a fresh context: the caller's
// may be the reason the participant insert failed.
func (s *MongoRoomStore) compensateInsert(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.parts.DeleteMany(ctx, bson.M{"room_id": roomID}); err != nil {
		logger.Errorf("[roomstore] undo participants roomID=%s: %v", roomID, err)
	}
	if _, err := s.rooms.DeleteOne(ctx, bson.M{"room_id": roomID}); err != nil {
		logger.Errorf("[roomstore] undo room roomID=%s: %v", roomID, err)
	}
}

func (s *MongoRoomStore) FindDirectByPairKey(ctx context.Context, pairKey string) (*model.RoomModel, error) {
	var room model.RoomModel
	err := s.rooms.FindOne(ctx, bson.M{"pair_key": pairKey}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("direct room", "pairKey", pairKey)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find direct room", "pairKey", pairKey)
	}
	return &room, nil
}

func (s *MongoRoomStore) FindRoom(ctx context.Context, roomID string) (*model.RoomModel, error) {
	var room model.RoomModel
	err := s.rooms.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("room", "roomID", roomID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find room", "roomID", roomID)
	}
	return &room, nil
}

func (s *MongoRoomStore) RoomsForUser(ctx context.Context, username string) ([]*model.RoomModel, error) {
	cur, err := s.parts.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, errs.WrapMsg(err, "participant rows", "user", username)
	}
	var rows []*model.ParticipantModel
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.RoomID)
	}
	rcur, err := s.rooms.Find(ctx, bson.M{"room_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errs.WrapMsg(err, "rooms by ids", "user", username)
	}
	var rooms []*model.RoomModel
	if err := rcur.All(ctx, &rooms); err != nil {
		return nil, errs.Wrap(err)
	}
	return rooms, nil
}

func (s *MongoRoomStore) Participants(ctx context.Context, roomID string) ([]*model.ParticipantModel, error) {
	cur, err := s.parts.Find(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return nil, errs.WrapMsg(err, "participants", "roomID", roomID)
	}
	var rows []*model.ParticipantModel
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.Wrap(err)
	}
	return rows, nil
}

func (s *MongoRoomStore) FindParticipant(ctx context.Context, roomID, username string) (*model.ParticipantModel, error) {
	var p model.ParticipantModel
	err := s.parts.FindOne(ctx, bson.M{"room_id": roomID, "username": username}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("participant", "roomID", roomID, "user", username)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find participant", "roomID", roomID, "user", username)
	}
	return &p, nil
}

func (s *MongoRoomStore) SetLastRead(ctx context.Context, roomID, username string, ts int64) error {
	// $max keeps the marker monotonic even with stale frames racing
	_, err := s.parts.UpdateOne(ctx,
		bson.M{"room_id": roomID, "username": username},
		bson.M{"$max": bson.M{"last_read": ts}},
	)
	return errs.WrapMsg(err, "set last read", "roomID", roomID, "user", username)
}

type MongoMessageStore struct {
	msgs *mongo.Collection
}

func NewMongoMessageStore(db *mongo.Database) *MongoMessageStore {
	return &MongoMessageStore{msgs: db.Collection(model.MsgTableName)}
}

func (s *MongoMessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.msgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "msg_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "msg_id", Value: -1}},
		},
	})
	return errs.WrapMsg(err, "create message indexes")
}

func (s *MongoMessageStore) Insert(ctx context.Context, msg *model.MsgModel) error {
	if _, err := s.msgs.InsertOne(ctx, msg); err != nil {
		return errs.WrapMsg(err, "insert message", "roomID", msg.RoomID, "msgID", msg.MsgID)
	}
	return nil
}

func (s *MongoMessageStore) Find(ctx context.Context, msgID string) (*model.MsgModel, error) {
	var m model.MsgModel
	err := s.msgs.FindOne(ctx, bson.M{"msg_id": msgID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("message", "msgID", msgID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find message", "msgID", msgID)
	}
	return &m, nil
}

func (s *MongoMessageStore) PageDesc(ctx context.Context, roomID string, beforeTS int64, beforeID string, limit int) ([]*model.MsgModel, error) {
	filter := bson.M{"room_id": roomID}
	if beforeTS > 0 {
		// strictly older than the cursor position, ties broken by id
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": beforeTS}},
			bson.M{"created_at": beforeTS, "msg_id": bson.M{"$lt": beforeID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "msg_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.msgs.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "page messages", "roomID", roomID)
	}
	var out []*model.MsgModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

func (s *MongoMessageStore) LatestForRoom(ctx context.Context, roomID string) (*model.MsgModel, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "msg_id", Value: -1}})
	var m model.MsgModel
	err := s.msgs.FindOne(ctx, bson.M{"room_id": roomID}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("latest message", "roomID", roomID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "latest message", "roomID", roomID)
	}
	return &m, nil
}

func (s *MongoMessageStore) Update(ctx context.Context, msg *model.MsgModel) error {
	_, err := s.msgs.UpdateOne(ctx,
		bson.M{"msg_id": msg.MsgID},
		bson.M{"$set": bson.M{
			"body":    msg.Body,
			"reel_id": msg.ReelID,
			"edited":  msg.Edited,
			"deleted": msg.Deleted,
		}},
	)
	return errs.WrapMsg(err, "update message", "msgID", msg.MsgID)
}
