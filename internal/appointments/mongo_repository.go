package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

// MongoConfig locates the appointments collection.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
}

// MongoStore persists appointments in MongoDB. The client is created on first
// use and reused for the life of the process; Close releases it.
type MongoStore struct {
	cfg    MongoConfig
	logger *logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoAppointment struct {
	ID          primitive.ObjectID `bson:"_id"`
	Appointment `bson:",inline"`
}

// NewMongoStore returns a store that connects lazily. No I/O happens here.
func NewMongoStore(cfg MongoConfig, logger *logging.Logger) *MongoStore {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = "appointments"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &MongoStore{
		cfg:    cfg,
		logger: logger.Component("appointments.mongo"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewMongoStoreWithCollection wraps an already connected collection.
func NewMongoStoreWithCollection(coll *mongo.Collection, logger *logging.Logger) *MongoStore {
	s := NewMongoStore(MongoConfig{}, logger)
	s.coll = coll
	return s
}

// collection returns the cached collection, connecting on the first call.
// A failed attempt caches nothing, so the next request dials again.
func (s *MongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coll != nil {
		return s.coll, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return nil, storageError("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storageError("ping", err)
	}

	s.client = client
	s.coll = client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	s.logger.Info("connected to mongodb", "database", s.cfg.Database, "collection", s.cfg.Collection)

	if err := ensureIndexes(ctx, s.coll); err != nil {
		s.logger.Warn("failed to create appointment indexes", "error", err)
	}
	return s.coll, nil
}

// ensureIndexes creates the index behind the operator listing.
func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Insert writes a pending appointment document.
func (s *MongoStore) Insert(ctx context.Context, sub Submission) (string, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	doc := mongoAppointment{
		ID: primitive.NewObjectID(),
		Appointment: Appointment{
			Submission: sub,
			Status:     StatusPending,
			CreatedAt:  s.now(),
		},
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return "", storageError("insert", err)
	}
	return doc.ID.Hex(), nil
}

// MarkNotified sets status to notified and drops any earlier send error.
func (s *MongoStore) MarkNotified(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, statusUpdate(StatusNotified, "", s.now()))
}

// MarkEmailFailed sets status to email_failed with the provider's message.
func (s *MongoStore) MarkEmailFailed(ctx context.Context, id string, message string) error {
	return s.setStatus(ctx, id, statusUpdate(StatusEmailFailed, message, s.now()))
}

// statusUpdate builds the update document for a status transition. emailError
// is only kept on email_failed records.
func statusUpdate(status Status, emailError string, now time.Time) bson.M {
	if status == StatusEmailFailed {
		return bson.M{"$set": bson.M{"status": status, "emailError": emailError, "updatedAt": now}}
	}
	return bson.M{
		"$set":   bson.M{"status": status, "updatedAt": now},
		"$unset": bson.M{"emailError": ""},
	}
}

func (s *MongoStore) setStatus(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storageError("update status", fmt.Errorf("%w: invalid id %q", ErrAppointmentNotFound, id))
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	res, err := coll.UpdateByID(ctx, oid, update)
	if err != nil {
		return storageError("update status", err)
	}
	if res.MatchedCount == 0 {
		return storageError("update status", ErrAppointmentNotFound)
	}
	return nil
}

// List returns the newest appointments first, optionally filtered by status.
func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(filter.normalizedLimit()))

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, storageError("list", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoAppointment
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageError("decode list", err)
	}

	out := make([]Appointment, 0, len(docs))
	for _, doc := range docs {
		appt := doc.Appointment
		appt.ID = doc.ID.Hex()
		out = append(out, appt)
	}
	return out, nil
}

// Close disconnects the client if one was opened.
func (s *MongoStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	if err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("appointments: disconnect mongodb: %w", err)
	}
	return nil
}

// Ping checks connectivity, connecting first if needed.
func (s *MongoStore) Ping(ctx context.Context) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	return coll.Database().Client().Ping(ctx, nil)
}
