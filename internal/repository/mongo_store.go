package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

const (
	availabilityCacheID = "seats.isAvailable"
	checkedInCacheID    = "seats.checkedIn"
)

// cacheDoc is a denormalised seat id -> flag document in the caches
// collection.
type cacheDoc struct {
	ID        string          `bson:"_id"`
	Seats     map[string]bool `bson:"seats"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

// MongoStore implements Store on MongoDB.  Every reservation writes the
// shared availability cache document, so concurrent reservations always
// collide on it and the driver replays the loser (WriteConflict is a
// TransientTransactionError).  Requires a replica set.
type MongoStore struct {
	client    *mongo.Client
	seats     *mongo.Collection
	tickets   *mongo.Collection
	customers *mongo.Collection
	caches    *mongo.Collection
}

// NewMongoStore binds the collections of db.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:    client,
		seats:     db.Collection("seats"),
		tickets:   db.Collection("tickets"),
		customers: db.Collection("customers"),
		caches:    db.Collection("caches"),
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.customers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ticketIds", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := s.seats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservedBy", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: 1}}},
	})
	return err
}

// RunAtomic implements Store.
func (s *MongoStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{s: s})
	})
	return err
}

// mongoTx runs its operations on the session context handed to it.
type mongoTx struct {
	s *MongoStore
}

func (t *mongoTx) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return t.s.findTicket(ctx, bson.M{"_id": id})
}

func (t *mongoTx) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return t.s.findTicket(ctx, bson.M{"code": code})
}

func (t *mongoTx) GetSeats(ctx context.Context, ids []string) (map[string]model.Seat, error) {
	seats, err := t.s.findSeats(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Seat, len(seats))
	for _, seat := range seats {
		out[seat.ID] = seat
	}
	return out, nil
}

func (t *mongoTx) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	return t.s.findSeats(ctx, bson.M{"reservedBy": ticketID})
}

func (t *mongoTx) MarkSeatsReserved(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	_, err := t.s.seats.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"isAvailable": false, "reservedBy": ticketID, "updatedAt": at.UTC()}})
	return err
}

func (t *mongoTx) SetAvailability(ctx context.Context, updates map[string]bool) error {
	return t.s.setCacheFlags(ctx, availabilityCacheID, updates)
}

func (t *mongoTx) ConfirmTicket(ctx context.Context, ticketID string, at time.Time) error {
	res, err := t.s.tickets.UpdateOne(ctx,
		bson.M{"_id": ticketID, "seatConfirmed": false},
		bson.M{"$set": bson.M{"seatConfirmed": true, "confirmedAt": at.UTC(), "updatedAt": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return Conflictf("Seats are already confirmed")
	}
	return nil
}

func (t *mongoTx) CheckedIn(ctx context.Context, ids []string) (map[string]bool, error) {
	doc, err := t.s.cache(ctx, checkedInCacheID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = doc.Seats[id]
	}
	return out, nil
}

func (t *mongoTx) MarkCheckedIn(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	flags := make(map[string]bool, len(ids))
	for _, id := range ids {
		flags[id] = true
	}
	return t.s.setCacheFlags(ctx, checkedInCacheID, flags)
}

func (s *MongoStore) findTicket(ctx context.Context, filter bson.M) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.tickets.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NotFoundf("Ticket not found")
		}
		return nil, err
	}
	if t.Quotas == nil {
		t.Quotas = map[string]int{}
	}
	return &t, nil
}

func (s *MongoStore) findSeats(ctx context.Context, filter bson.M) ([]model.Seat, error) {
	cur, err := s.seats.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []model.Seat
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) findCustomer(ctx context.Context, filter bson.M) (*model.Customer, error) {
	var c model.Customer
	if err := s.customers.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NotFoundf("Customer not found")
		}
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) cache(ctx context.Context, id string) (cacheDoc, error) {
	doc := cacheDoc{ID: id}
	err := s.caches.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return doc, err
	}
	if doc.Seats == nil {
		doc.Seats = map[string]bool{}
	}
	return doc, nil
}

func (s *MongoStore) setCacheFlags(ctx context.Context, id string, flags map[string]bool) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for seatID, v := range flags {
		set["seats."+seatID] = v
	}
	_, err := s.caches.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

// SeatTopology implements Store.
func (s *MongoStore) SeatTopology(ctx context.Context) ([]model.Seat, error) {
	return s.findSeats(ctx, bson.M{})
}

// UpsertSeats implements Store.
func (s *MongoStore) UpsertSeats(ctx context.Context, seats []model.Seat) error {
	now := time.Now().UTC()
	fresh := make(map[string]bool)
	for _, seat := range seats {
		res, err := s.seats.UpdateOne(ctx, bson.M{"_id": seat.ID}, bson.M{
			"$set": bson.M{
				"label":         seat.Label,
				"level":         seat.Level,
				"category":      seat.Category,
				"location":      seat.Location,
				"notSelectable": seat.NotSelectable,
				"leftId":        seat.LeftID,
				"rightId":       seat.RightID,
				"updatedAt":     now,
			},
			"$setOnInsert": bson.M{"isAvailable": true},
		}, options.Update().SetUpsert(true))
		if err != nil {
			return err
		}
		if res.UpsertedCount > 0 {
			fresh[seat.ID] = true
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return s.setCacheFlags(ctx, availabilityCacheID, fresh)
}

// SeatsUpdatedSince implements Store.
func (s *MongoStore) SeatsUpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error) {
	return s.findSeats(ctx, bson.M{"updatedAt": bson.M{"$gt": since.UTC()}})
}

// SeatsReservedBy implements Store.
func (s *MongoStore) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	return s.findSeats(ctx, bson.M{"reservedBy": ticketID})
}

// Availability implements Store.
func (s *MongoStore) Availability(ctx context.Context) (map[string]bool, error) {
	doc, err := s.cache(ctx, availabilityCacheID)
	if err != nil {
		return nil, err
	}
	return doc.Seats, nil
}

// CheckedInSeats implements Store.
func (s *MongoStore) CheckedInSeats(ctx context.Context, ticketID string) (map[string]bool, error) {
	seats, err := s.SeatsReservedBy(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	doc, err := s.cache(ctx, checkedInCacheID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(seats))
	for _, seat := range seats {
		out[seat.ID] = doc.Seats[seat.ID]
	}
	return out, nil
}

// GetTicket implements Store.
func (s *MongoStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return s.findTicket(ctx, bson.M{"_id": id})
}

// GetTicketByCode implements Store.
func (s *MongoStore) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return s.findTicket(ctx, bson.M{"code": code})
}

// GetCustomerByEmail implements Store.
func (s *MongoStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return s.findCustomer(ctx, bson.M{"email": email})
}

// GetCustomerByTicketID implements Store.
func (s *MongoStore) GetCustomerByTicketID(ctx context.Context, ticketID string) (*model.Customer, error) {
	return s.findCustomer(ctx, bson.M{"ticketIds": ticketID})
}

// CreateCustomer implements Store.
func (s *MongoStore) CreateCustomer(ctx context.Context, c *model.Customer, t *model.Ticket) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.tickets.InsertOne(sc, t); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, Conflictf("Ticket code %s already in use", t.Code)
			}
			return nil, err
		}
		if _, err := s.customers.InsertOne(sc, c); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, Conflictf("Customer %s already exists", c.Email)
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
