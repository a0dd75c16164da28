package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arkaiv/arkaiv/pkg/model"
)

const (
	// ToolsCollection and DigestsCollection are the two collections the service owns.
	ToolsCollection   = "aitools"
	DigestsCollection = "dailydigests"

	mongoCloseTimeout = 5 * time.Second
)

// MongoStore implements the tool and digest repositories on MongoDB.
type MongoStore struct {
	client  *mongo.Client
	tools   *mongo.Collection
	digests *mongo.Collection
	now     func() time.Time
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects, pings and binds the tool and digest collections of database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, repoErr("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, repoErr("ping", err)
	}
	db := client.Database(database)
	return &MongoStore{
		client:  client,
		tools:   db.Collection(ToolsCollection),
		digests: db.Collection(DigestsCollection),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateSchema ensures the indexes the queries rely on.
func (ms *MongoStore) CreateSchema(ctx context.Context) error {
	if ms == nil || ms.tools == nil || ms.digests == nil {
		return nil
	}
	if _, err := ms.tools.Indexes().CreateMany(ctx, toolIndexes()); err != nil {
		return repoErr("create tool indexes", err)
	}
	if _, err := ms.digests.Indexes().CreateMany(ctx, digestIndexes()); err != nil {
		return repoErr("create digest indexes", err)
	}
	return nil
}

func toolIndexes() []mongo.IndexModel {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetName("url_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().SetName("name_description_text"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("created_at"),
		},
	}
	for _, src := range model.Sources() {
		metric := src.PrimaryMetric()
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "source", Value: 1}, {Key: metric.Field(), Value: -1}, {Key: "url", Value: 1}},
			Options: options.Index().SetName("source_" + string(metric)),
		})
	}
	return indexes
}

func digestIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{{
		Keys:    bson.D{{Key: "date", Value: -1}},
		Options: options.Index().SetName("date_unique").SetUnique(true),
	}}
}

// CountAll counts every tool record.
func (ms *MongoStore) CountAll(ctx context.Context) (int64, error) {
	if ms == nil || ms.tools == nil {
		return 0, nil
	}
	n, err := ms.tools.CountDocuments(ctx, bson.M{})
	return n, repoErr("count tools", err)
}

// CountCreatedBetween counts records created in [start, end).
func (ms *MongoStore) CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	if ms == nil || ms.tools == nil {
		return 0, nil
	}
	n, err := ms.tools.CountDocuments(ctx, createdBetweenFilter(start, end))
	return n, repoErr("count new tools", err)
}

func createdBetweenFilter(start, end time.Time) bson.M {
	return bson.M{"createdAt": bson.M{"$gte": start, "$lt": end}}
}

// TopBySource returns up to limit records of source ordered by metric desc, then url asc.
func (ms *MongoStore) TopBySource(ctx context.Context, source model.Source, metric model.Metric, limit int) ([]model.ToolRecord, error) {
	if ms == nil || ms.tools == nil || limit <= 0 {
		return nil, nil
	}
	cursor, err := ms.tools.Find(ctx, bson.M{"source": source}, topBySourceOptions(metric, limit))
	if err != nil {
		return nil, repoErr("find top "+string(source), err)
	}
	var out []model.ToolRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, repoErr("decode top "+string(source), err)
	}
	return out, nil
}

func topBySourceOptions(metric model.Metric, limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: metric.Field(), Value: -1}, {Key: "url", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"name":         1,
			"description":  1,
			"metrics":      1,
			"url":          1,
			"improvements": 1,
			"source":       1,
		})
}

// UpsertTool inserts or refreshes a record keyed by url and appends a timeline sample.
func (ms *MongoStore) UpsertTool(ctx context.Context, rec model.ToolRecord) (*model.ToolRecord, error) {
	if err := validateTool(rec); err != nil {
		return nil, err
	}
	if ms == nil || ms.tools == nil {
		return nil, repoErr("upsert tool", errors.New("mongo store is not connected"))
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := ms.tools.FindOneAndUpdate(ctx, bson.M{"url": rec.URL}, toolUpsertUpdate(rec, ms.now()), opts)
	var out model.ToolRecord
	if err := res.Decode(&out); err != nil {
		return nil, repoErr("upsert tool", err)
	}
	return &out, nil
}

func toolUpsertUpdate(rec model.ToolRecord, now time.Time) bson.M {
	set := bson.M{
		"name":        rec.Name,
		"source":      rec.Source,
		"metrics":     rec.Metrics,
		"description": rec.Description,
		"updatedAt":   now,
	}
	if rec.Improvements != "" {
		set["improvements"] = rec.Improvements
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": createdAt},
		"$push": bson.M{"timeline": model.TimelinePoint{
			Date:  now,
			Value: rec.PrimaryValue(),
		}},
	}
}

// ListTools returns records optionally filtered by source, best first.
func (ms *MongoStore) ListTools(ctx context.Context, source model.Source, limit int) ([]model.ToolRecord, error) {
	if ms == nil || ms.tools == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	filter := bson.M{}
	metric := model.MetricStars
	if source != "" {
		filter["source"] = source
		metric = source.PrimaryMetric()
	}
	opts := options.Find().
		SetSort(bson.D{{Key: metric.Field(), Value: -1}, {Key: "url", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := ms.tools.Find(ctx, filter, opts)
	if err != nil {
		return nil, repoErr("list tools", err)
	}
	var out []model.ToolRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, repoErr("decode tools", err)
	}
	return out, nil
}

// Search matches query case-insensitively against name and description.
func (ms *MongoStore) Search(ctx context.Context, query string, limit int) ([]model.ToolRecord, error) {
	if ms == nil || ms.tools == nil || query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	opts := options.Find().SetSort(searchSort()).SetLimit(int64(limit))
	cursor, err := ms.tools.Find(ctx, searchFilter(query), opts)
	if err != nil {
		return nil, repoErr("search tools", err)
	}
	var out []model.ToolRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, repoErr("decode search results", err)
	}
	return out, nil
}

func searchFilter(query string) bson.M {
	pattern := regexp.QuoteMeta(query)
	return bson.M{"$or": bson.A{
		bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
	}}
}

func searchSort() bson.D {
	return bson.D{
		{Key: model.MetricStars.Field(), Value: -1},
		{Key: model.MetricDownloads.Field(), Value: -1},
		{Key: model.MetricCitations.Field(), Value: -1},
		{Key: "url", Value: 1},
	}
}

// UpsertDaily writes the digest for digest.Date's day, overwriting the mutable fields of
// an existing digest for the same day instead of inserting a second one.
func (ms *MongoStore) UpsertDaily(ctx context.Context, digest model.DailyDigest) (*model.DailyDigest, error) {
	if ms == nil || ms.digests == nil {
		return nil, repoErr("upsert digest", errors.New("mongo store is not connected"))
	}
	filter, update := dailyUpsert(digest, ms.now())
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out model.DailyDigest
	if err := ms.digests.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, repoErr("upsert digest", err)
	}
	return &out, nil
}

func dailyUpsert(digest model.DailyDigest, now time.Time) (bson.M, bson.M) {
	start, end := model.DayRange(digest.Date)
	createdAt := digest.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	filter := bson.M{"date": bson.M{"$gte": start, "$lt": end}}
	update := bson.M{
		"$set": bson.M{
			"totalTools":        digest.TotalTools,
			"newTools":          digest.NewTools,
			"topEntries":        digest.TopEntries,
			"summary":           digest.Summary,
			"formattedDocument": digest.FormattedDocument,
		},
		"$setOnInsert": bson.M{
			"date":      start,
			"createdAt": createdAt,
		},
	}
	return filter, update
}

// Latest returns the most recent digest.
func (ms *MongoStore) Latest(ctx context.Context) (*model.DailyDigest, error) {
	if ms == nil || ms.digests == nil {
		return nil, ErrNotFound
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})
	return ms.findDigest(ctx, bson.M{}, opts)
}

// ByDate returns the digest whose date falls on day (day should already be midnight).
func (ms *MongoStore) ByDate(ctx context.Context, day time.Time) (*model.DailyDigest, error) {
	if ms == nil || ms.digests == nil {
		return nil, ErrNotFound
	}
	start, end := model.DayRange(day)
	return ms.findDigest(ctx, bson.M{"date": bson.M{"$gte": start, "$lt": end}}, options.FindOne())
}

func (ms *MongoStore) findDigest(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.DailyDigest, error) {
	var out model.DailyDigest
	err := ms.digests.FindOne(ctx, filter, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repoErr("find digest", err)
	}
	return &out, nil
}

// DeleteBefore removes digests dated strictly before cutoff.
func (ms *MongoStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if ms == nil || ms.digests == nil {
		return 0, nil
	}
	res, err := ms.digests.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, repoErr("delete digests", err)
	}
	return res.DeletedCount, nil
}

// Close releases the underlying MongoDB client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
