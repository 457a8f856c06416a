package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

func openMongo(ctx context.Context, uri, database string, logger *slog.Logger) (Store, error) {
	if database == "" {
		return nil, fmt.Errorf("MONGO_DATABASE is required for mongodb:// stores")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, mapMongoErr(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, mapMongoErr(err)
	}

	return &mongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger.With("component", "docstore"),
	}, nil
}

func (s *mongoStore) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}

	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Document{}, mapMongoErr(err)
	}
	return Document{Path: path, ID: id, Fields: fieldsFromBSON(raw)}, nil
}

func (s *mongoStore) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	coll := s.db.Collection(collection)

	if !merge {
		doc := make(map[string]any, len(fields))
		applyMerge(doc, fields, time.Now().UTC())
		doc["_id"] = id
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
		return mapMongoErr(err)
	}

	update := mergeUpdate(fields)
	_, err = coll.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
	return mapMongoErr(err)
}

func (s *mongoStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return mapMongoErr(err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		// WithTransaction may retry; each attempt gets a fresh buffer.
		tx := &mongoTx{store: s, ctx: sc}
		if err := fn(tx); err != nil {
			return nil, err
		}
		for _, w := range tx.writes {
			if err := s.Set(sc, w.path, w.fields, w.merge); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return mapMongoErr(err)
}

func (s *mongoStore) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	filter := bson.M{}
	for _, p := range preds {
		switch p.Op {
		case OpEqual, OpArrayContains:
			// Mongo equality on an array field matches containment.
			filter[p.Field] = p.Value
		case OpIn:
			filter[p.Field] = bson.M{"$in": anySlice(p.Value)}
		default:
			return nil, fmt.Errorf("unsupported query op %q", p.Op)
		}
	}

	findOpts := options.Find()
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	defer cursor.Close(ctx)

	var out []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, mapMongoErr(err)
		}
		id, _ := raw["_id"].(string)
		out = append(out, Document{
			Path:   collection + "/" + id,
			ID:     id,
			Fields: fieldsFromBSON(raw),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, mapMongoErr(err)
	}
	return out, nil
}

func (s *mongoStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(collection).Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, mapMongoErr(err)
	}

	sub := newSubscription(cancel)

	// Initial snapshot, if the document already exists.
	if doc, err := s.Get(ctx, path); err == nil {
		sub.publish(Update{Doc: doc})
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var event struct {
				OperationType string `bson:"operationType"`
				FullDocument  bson.M `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				sub.publish(Update{Err: mapMongoErr(err)})
				continue
			}
			if event.FullDocument == nil {
				continue
			}
			sub.publish(Update{Doc: Document{
				Path:   path,
				ID:     id,
				Fields: fieldsFromBSON(event.FullDocument),
			}})
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			sub.publish(Update{Err: mapMongoErr(err)})
		}
	}()

	return sub, nil
}

func (s *mongoStore) Ready(ctx context.Context) error {
	return mapMongoErr(s.client.Ping(ctx, readpref.Primary()))
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoWrite struct {
	path   string
	fields map[string]any
	merge  bool
}

type mongoTx struct {
	store  *mongoStore
	ctx    mongo.SessionContext
	writes []mongoWrite
}

func (tx *mongoTx) Get(path string) (Document, error) {
	return tx.store.Get(tx.ctx, path)
}

func (tx *mongoTx) Set(path string, fields map[string]any, merge bool) {
	tx.writes = append(tx.writes, mongoWrite{path: path, fields: fields, merge: merge})
}

// mergeUpdate translates merge-operator fields into a mongo update
// document.
func mergeUpdate(fields map[string]any) bson.M {
	set := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	inc := bson.M{}
	unset := bson.M{}
	currentDate := bson.M{}

	for key, value := range fields {
		switch v := value.(type) {
		case arrayUnion:
			addToSet[key] = bson.M{"$each": v.values}
		case arrayRemove:
			pull[key] = bson.M{"$in": v.values}
		case increment:
			inc[key] = v.delta
		case serverTimestamp:
			currentDate[key] = true
		case deleteField:
			unset[key] = ""
		default:
			set[key] = value
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(currentDate) > 0 {
		update["$currentDate"] = currentDate
	}
	if len(update) == 0 {
		// An empty merge is still an upsert touchpoint.
		update["$set"] = bson.M{}
	}
	return update
}

func fieldsFromBSON(raw bson.M) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		out[k] = valueFromBSON(v)
	}
	return out
}

func valueFromBSON(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = valueFromBSON(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = valueFromBSON(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	default:
		return v
	}
}

func mapMongoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 13 { // Unauthorized
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
