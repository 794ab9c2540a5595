package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// OpenMongo connects to uri, pings the primary and returns the client with
// the named database.  Transactions need a replica set.
func OpenMongo(ctx context.Context, uri, name string, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(uri).SetAppName("event-seat-reservation")
	// pool
	opts.SetMinPoolSize(2)
	opts.SetMaxPoolSize(50)
	opts.SetMaxConnIdleTime(5 * time.Minute)
	// timeouts
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetServerSelectionTimeout(5 * time.Second)
	opts.SetWriteConcern(writeconcern.Majority())
	opts.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated, event.ConnectionClosed:
				log.Debug("mongo pool event", zap.String("type", evt.Type), zap.String("address", evt.Address))
			}
		},
	})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info("connected to mongodb", zap.String("database", name))
	return client, client.Database(name), nil
}
