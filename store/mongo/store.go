// Package mongo implements store.Store on MongoDB. The idempotent-create and
// conditional-write contracts map onto the _id unique index and filtered
// UpdateOne respectively.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	entitledstore "github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// Collection name constants.
const (
	colProfiles = "entitled_profiles"
	colUsageLog = "entitled_usage_log"
)

// compile-time interface check
var _ entitledstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// ownsClient marks clients we dialed ourselves; Close only disconnects
	// those.
	ownsClient bool
}

// New dials MongoDB and returns a store over the named database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("entitled/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("entitled/mongo: ping: %w", err)
	}
	s := NewWithClient(client, database)
	s.ownsClient = true
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of the
// connection; Close is a no-op on it.
func NewWithClient(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Database returns the underlying database handle for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates the indexes both collections rely on.
func (s *Store) Migrate(ctx context.Context) error {
	usageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "day", Value: 1}}},
		{Keys: bson.D{{Key: "ts", Value: 1}}},
	}
	if _, err := s.db.Collection(colUsageLog).Indexes().CreateMany(ctx, usageIndexes); err != nil {
		return fmt.Errorf("%w: entitled/mongo: usage log indexes: %w", entitled.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client when this store dialed it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Profiles ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	doc := toProfileDoc(p)
	_, err := s.db.Collection(colProfiles).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entitled.ErrProfileExists
		}
		return fmt.Errorf("entitled/mongo: create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var doc profileDoc
	err := s.db.Collection(colProfiles).
		FindOne(ctx, bson.M{"_id": userID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entitled.ErrProfileNotFound
		}
		return nil, fmt.Errorf("entitled/mongo: get profile: %w", err)
	}
	return fromProfileDoc(&doc)
}

// UpdateProfile writes conditionally on the version the caller read. A
// matched count of zero is disambiguated with a follow-up existence check.
func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	doc := toProfileDoc(p)
	now := time.Now().UTC()

	res, err := s.db.Collection(colProfiles).UpdateOne(ctx,
		bson.M{"_id": p.UserID, "version": p.Version},
		bson.M{
			"$set": bson.M{
				"tier":              doc.Tier,
				"status":            doc.Status,
				"addons":            doc.Addons,
				"daily_usage_count": doc.DailyUsageCount,
				"last_reset_date":   doc.LastResetDate,
				"updated_at":        now,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("entitled/mongo: update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.db.Collection(colProfiles).CountDocuments(ctx, bson.M{"_id": p.UserID})
		if err != nil {
			return fmt.Errorf("entitled/mongo: update profile: %w", err)
		}
		if n == 0 {
			return entitled.ErrProfileNotFound
		}
		return entitled.ErrVersionConflict
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

// ==================== Usage Log ====================

func (s *Store) AppendUsage(ctx context.Context, e *usage.LogEntry) error {
	_, err := s.db.Collection(colUsageLog).InsertOne(ctx, toUsageDoc(e))
	if err != nil {
		return fmt.Errorf("entitled/mongo: append usage: %w", err)
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	filter := bson.M{"user_id": userID}
	if opts.From != "" || opts.To != "" {
		day := bson.M{}
		if opts.From != "" {
			day["$gte"] = string(opts.From)
		}
		if opts.To != "" {
			day["$lte"] = string(opts.To)
		}
		filter["day"] = day
	}
	if opts.Action != "" {
		filter["action"] = opts.Action
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colUsageLog).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("entitled/mongo: query usage: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*usage.LogEntry
	for cursor.Next(ctx) {
		var doc usageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("entitled/mongo: decode usage entry: %w", err)
		}
		e, err := fromUsageDoc(&doc)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("entitled/mongo: query usage: %w", err)
	}
	return result, nil
}

func (s *Store) CountUsage(ctx context.Context, userID string, day types.Date) (int64, error) {
	n, err := s.db.Collection(colUsageLog).CountDocuments(ctx,
		bson.M{"user_id": userID, "day": string(day)},
	)
	if err != nil {
		return 0, fmt.Errorf("entitled/mongo: count usage: %w", err)
	}
	return n, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colUsageLog).DeleteMany(ctx,
		bson.M{"ts": bson.M{"$lt": before.UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("entitled/mongo: purge usage: %w", err)
	}
	return res.DeletedCount, nil
}
