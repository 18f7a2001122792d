package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// MongoObservabilityStore is an alternate EmbedLogStore backend that also
// stores user profiles (UpsertUserProfile/GetUserProfile); it has no
// DeleteUserMemories, so it does not satisfy the full UserStore interface. It is
// grounded on the teacher's src/memory/store/mongodb_store.go, narrowed to
// the observability rows (embed_logs, users) rather than the full memory
// table: the vector/graph side of C4 stays on Postgres+pgvector, while a
// document store suits the append-heavy, schema-light embed log.
type MongoObservabilityStore struct {
	client      *mongo.Client
	embedLogs   *mongo.Collection
	userProfile *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoObservabilityStore(ctx context.Context, uri, database string) (*MongoObservabilityStore, error) {
	if uri == "" {
		return nil, errors.New("mongo store: uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo store: database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoObservabilityStore{
		client:      client,
		embedLogs:   db.Collection("embed_logs"),
		userProfile: db.Collection("users"),
	}, nil
}

func (ms *MongoObservabilityStore) WriteEmbedLog(ctx context.Context, log model.EmbedLog) error {
	doc := bson.M{
		"kind":       log.Kind,
		"status":     string(log.Status),
		"created_at": log.CreatedAt,
		"error":      log.Error,
	}
	opts := options.Update().SetUpsert(true)
	_, err := ms.embedLogs.UpdateByID(ctx, log.ID, bson.M{"$set": doc}, opts)
	return err
}

func (ms *MongoObservabilityStore) UpsertUserProfile(ctx context.Context, p model.UserProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	doc := bson.M{
		"summary":          p.Summary,
		"reflection_count": p.ReflectionCount,
		"updated_at":       p.UpdatedAt,
	}
	opts := options.Update().SetUpsert(true)
	update := bson.M{
		"$set":         doc,
		"$setOnInsert": bson.M{"created_at": p.CreatedAt},
	}
	_, err := ms.userProfile.UpdateByID(ctx, p.UserID, update, opts)
	return err
}

func (ms *MongoObservabilityStore) GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var doc struct {
		Summary         string    `bson:"summary"`
		ReflectionCount int       `bson:"reflection_count"`
		CreatedAt       time.Time `bson:"created_at"`
		UpdatedAt       time.Time `bson:"updated_at"`
	}
	if err := ms.userProfile.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NewError(model.NotFound, "store", nil).WithContext(userID, "")
		}
		return nil, err
	}
	return &model.UserProfile{
		UserID:          userID,
		Summary:         doc.Summary,
		ReflectionCount: doc.ReflectionCount,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

func (ms *MongoObservabilityStore) Close() error {
	if ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
