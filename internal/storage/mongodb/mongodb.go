package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

const (
	assetsCollection     = "assets"
	ownersCollection     = "owners"
	engagementCollection = "engagement"
)

// Mongo is the document database backend of the catalog.
type Mongo struct {
	client     *mongo.Client
	assets     *mongo.Collection
	owners     *mongo.Collection
	engagement *mongo.Collection
}

// Connect dials uri, pings the primary and makes sure the catalog indexes exist.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:     client,
		assets:     db.Collection(assetsCollection),
		owners:     db.Collection(ownersCollection),
		engagement: db.Collection(engagementCollection),
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the text index over title and description plus the
// indexes backing listing, owner filters and engagement counts.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.assets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().
				SetName("assets_text").
				SetWeights(bson.D{{Key: "title", Value: 2}, {Key: "description", Value: 1}}),
		},
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create asset indexes: %w", err)
	}

	_, err = m.engagement.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "asset_id", Value: 1}, {Key: "kind", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create engagement index: %w", err)
	}

	_, err = m.owners.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	return nil
}

var _ storage.Storage = (*Mongo)(nil)

func (m *Mongo) CreateAsset(ctx context.Context, a *assets.Asset) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	rec := *a
	rec.Owner = nil
	_, err := m.assets.InsertOne(ctx, rec)
	return err
}

func (m *Mongo) GetAsset(ctx context.Context, id string) (*assets.Asset, error) {
	var a assets.Asset
	err := m.assets.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *Mongo) GetAssetWithOwner(ctx context.Context, id string) (*assets.Asset, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$limit", Value: 1}},
	}
	pipeline = append(pipeline, ownerLookup()...)

	cur, err := m.assets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, storage.ErrNotFound
	}
	var a assets.Asset
	if err := cur.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ownerLookup resolves the owner summary in the same aggregation so a page of
// assets costs one round trip regardless of its size.
func ownerLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": ownersCollection,
			"let":  bson.M{"oid": "$owner_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$oid"}}}},
				bson.M{"$project": bson.M{"username": 1, "fullname": 1, "avatar": 1}},
			},
			"as": "owner",
		}}},
		{{Key: "$addFields", Value: bson.M{"owner": bson.M{"$first": "$owner"}}}},
	}
}

func (m *Mongo) UpdateAsset(ctx context.Context, id string, c storage.AssetChanges) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if c.Title != nil {
		set["title"] = *c.Title
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.VideoFile != nil {
		set["video_file"] = *c.VideoFile
	}
	if c.Thumbnail != nil {
		set["thumbnail"] = *c.Thumbnail
	}
	if c.Duration != nil {
		set["duration"] = *c.Duration
	}
	if c.IsPublished != nil {
		set["published"] = *c.IsPublished
	}

	res, err := m.assets.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteAsset(ctx context.Context, id string) error {
	res, err := m.assets.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var sortFields = map[assets.SortField]string{
	assets.SortCreatedAt: "created_at",
	assets.SortViews:     "views",
	assets.SortDuration:  "duration",
	assets.SortTitle:     "title",
}

func listFilter(q assets.ListQuery) bson.M {
	filter := bson.M{}
	if !q.IncludeUnpublished {
		filter["published"] = true
	}
	if q.OwnerID != "" {
		filter["owner_id"] = q.OwnerID
	}
	if q.Search != "" {
		filter["$text"] = bson.M{"$search": q.Search}
	}
	return filter
}

// listSort orders by text score first when searching, then by the requested
// field, then by id so pages never overlap.
func listSort(q assets.ListQuery) bson.D {
	dir := -1
	if storage.Ascending(q) {
		dir = 1
	}
	field, ok := sortFields[q.SortBy]
	if !ok {
		field, dir = "created_at", -1
	}

	var s bson.D
	if q.Search != "" {
		s = append(s, bson.E{Key: "score", Value: bson.M{"$meta": "textScore"}})
	}
	s = append(s, bson.E{Key: field, Value: dir}, bson.E{Key: "_id", Value: 1})
	return s
}

func (m *Mongo) ListAssets(ctx context.Context, q assets.ListQuery) ([]assets.Asset, int64, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: listFilter(q)}}}
	if q.Search != "" {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "textScore"}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: listSort(q)}})

	items := bson.A{
		bson.M{"$skip": q.Offset()},
		bson.M{"$limit": q.Limit},
	}
	for _, stage := range ownerLookup() {
		items = append(items, stage)
	}
	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.M{
		"items": items,
		"total": bson.A{bson.M{"$count": "n"}},
	}}})

	cur, err := m.assets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []struct {
		Items []assets.Asset `bson:"items"`
		Total []struct {
			N int64 `bson:"n"`
		} `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 || len(out[0].Total) == 0 {
		return []assets.Asset{}, 0, nil
	}
	return out[0].Items, out[0].Total[0].N, nil
}

func (m *Mongo) IncrementViews(ctx context.Context, id string) error {
	res, err := m.assets.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (m *Mongo) AddEngagement(ctx context.Context, e *assets.Engagement) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := m.engagement.InsertOne(ctx, e)
	return err
}

func (m *Mongo) CountEngagement(ctx context.Context, assetID string, kind assets.EngagementKind) (int64, error) {
	return m.engagement.CountDocuments(ctx, bson.M{"asset_id": assetID, "kind": kind})
}

func (m *Mongo) DeleteEngagement(ctx context.Context, assetID string) (int64, error) {
	res, err := m.engagement.DeleteMany(ctx, bson.M{"asset_id": assetID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *Mongo) CreateOwner(ctx context.Context, o *users.Owner) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.WatchHistory == nil {
		o.WatchHistory = []string{}
	}
	_, err := m.owners.InsertOne(ctx, o)
	return err
}

func (m *Mongo) GetOwner(ctx context.Context, id string) (*users.Owner, error) {
	var o users.Owner
	err := m.owners.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *Mongo) AppendWatchHistory(ctx context.Context, ownerID, assetID string) error {
	res, err := m.owners.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$addToSet": bson.M{"watch_history": assetID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
