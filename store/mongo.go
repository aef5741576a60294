package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps one document per account. Update replaces the document
// only if its version is unchanged since it was read, retrying with backoff
// when a concurrent writer got there first.
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	roles    *mongo.Collection
	roleSet  map[Role]struct{}
	now      func() time.Time
	budget   time.Duration
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable(err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable(err)
	}
	return client, nil
}

// NewMongoStore uses the accounts and roles collections of database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		accounts: db.Collection("accounts"),
		roles:    db.Collection("roles"),
		now:      time.Now,
		budget:   ContentionBudget,
	}
}

// Migrate creates the unique and foreign-key indexes and upserts the seed roles.
func (s *MongoStore) Migrate(ctx context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	var models []mongo.IndexModel
	for _, e := range schema.Entities {
		if e.Name != EntityAccount {
			continue
		}
		for _, field := range e.Unique {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_" + field),
			})
		}
	}
	for _, r := range schema.Relations {
		if r.From != EntityAccount {
			continue
		}
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: r.ForeignKey, Value: 1}},
			Options: options.Index().SetName("fk_" + r.ForeignKey),
		})
	}
	if len(models) > 0 {
		if _, err := s.accounts.Indexes().CreateMany(ctx, models); err != nil {
			return unavailable(err)
		}
	}

	for _, role := range schema.Roles {
		_, err := s.roles.UpdateOne(ctx,
			bson.M{"_id": string(role)},
			bson.M{"$setOnInsert": bson.M{"_id": string(role), "name": string(role)}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return unavailable(err)
		}
	}
	s.roleSet = schema.roleSet()
	return nil
}

func (s *MongoStore) Create(ctx context.Context, account *Account) error {
	if err := validateForCreate(account, s.roleSet); err != nil {
		return err
	}

	stored := account.Clone()
	now := s.now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if _, err := s.accounts.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			u, e, exErr := s.Exists(ctx, stored.Username, stored.Email)
			if exErr != nil {
				return exErr
			}
			if !u && !e {
				// Collided on _id.
				return &ConflictError{UsernameTaken: true}
			}
			return &ConflictError{UsernameTaken: u, EmailTaken: e}
		}
		return unavailable(err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, username string) (*Account, error) {
	var a Account
	if err := s.accounts.FindOne(ctx, bson.M{"username": username}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &a, nil
}

func (s *MongoStore) Exists(ctx context.Context, username, email string) (bool, bool, error) {
	u, err := s.accounts.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, unavailable(err)
	}
	e, err := s.accounts.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, unavailable(err)
	}
	return u > 0, e > 0, nil
}

func (s *MongoStore) Update(ctx context.Context, username string, fn UpdateFunc) (*Account, error) {
	var result *Account
	err := retryContended(ctx, s.budget, func() error {
		current, err := s.Get(ctx, username)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}
		working.ID = current.ID
		working.Username = current.Username
		working.Email = current.Email
		working.CreatedAt = current.CreatedAt
		working.Version = current.Version + 1
		working.UpdatedAt = s.now().UTC()

		res, err := s.accounts.ReplaceOne(ctx,
			bson.M{"_id": current.ID, "version": current.Version},
			working,
		)
		if err != nil {
			return unavailable(err)
		}
		if res.MatchedCount == 0 {
			return errContended
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
