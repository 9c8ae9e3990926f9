package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/query"
)

// MongoStorage - хранилище в MongoDB, коллекции tasks и users
type MongoStorage struct {
	client       *mongo.Client
	tasks        *mongo.Collection
	users        *mongo.Collection
	transactions bool
}

// NewMongoStorage подключается к MongoDB и создаёт индексы.
// transactions включает multi-document транзакции (нужен replica set).
func NewMongoStorage(ctx context.Context, uri, database string, transactions bool) (*MongoStorage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB не отвечает: %w", err)
	}

	db := client.Database(database)
	s := &MongoStorage{
		client:       client,
		tasks:        db.Collection("tasks"),
		users:        db.Collection("users"),
		transactions: transactions,
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info(ctx, "Подключение к MongoDB установлено", "database", database, "transactions", transactions)
	return s, nil
}

func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индекса users.email: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "pendingTasks", Value: 1}}}); err != nil {
		return fmt.Errorf("ошибка создания индекса users.pendingTasks: %w", err)
	}
	if _, err := s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "assignedUser", Value: 1}}}); err != nil {
		return fmt.Errorf("ошибка создания индекса tasks.assignedUser: %w", err)
	}
	return nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStorage) Tasks() Tasks { return mongoTasks{c: s.tasks} }

func (s *MongoStorage) Users() Users { return mongoUsers{c: s.users} }

func (s *MongoStorage) RunInTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if !s.transactions {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ошибка начала сессии: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

type taskDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Description      string             `bson:"description"`
	Deadline         time.Time          `bson:"deadline"`
	Completed        bool               `bson:"completed"`
	AssignedUser     string             `bson:"assignedUser"`
	AssignedUserName string             `bson:"assignedUserName"`
	DateCreated      time.Time          `bson:"dateCreated"`
}

func newTaskDoc(t *models.Task) taskDoc {
	return taskDoc{
		Name:             t.Name,
		Description:      t.Description,
		Deadline:         t.Deadline,
		Completed:        t.Completed,
		AssignedUser:     string(t.AssignedUser()),
		AssignedUserName: t.AssignedUserName(),
		DateCreated:      t.DateCreated,
	}
}

func (d taskDoc) model() models.Task {
	return models.Task{
		ID:          models.ID(d.ID.Hex()),
		Name:        d.Name,
		Description: d.Description,
		Deadline:    d.Deadline.UTC(),
		Completed:   d.Completed,
		Assignee:    models.AssignmentFromFields(d.AssignedUser, d.AssignedUserName),
		DateCreated: d.DateCreated.UTC(),
	}
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PendingTasks []string           `bson:"pendingTasks"`
	DateCreated  time.Time          `bson:"dateCreated"`
}

func newUserDoc(u *models.User) userDoc {
	pending := make([]string, 0, len(u.PendingTasks))
	for _, id := range models.UniqueIDs(u.PendingTasks) {
		pending = append(pending, string(id))
	}
	return userDoc{
		Name:         u.Name,
		Email:        u.Email,
		PendingTasks: pending,
		DateCreated:  u.DateCreated,
	}
}

func (d userDoc) model() models.User {
	pending := make([]models.ID, 0, len(d.PendingTasks))
	for _, id := range d.PendingTasks {
		pending = append(pending, models.ID(id))
	}
	return models.User{
		ID:           models.ID(d.ID.Hex()),
		Name:         d.Name,
		Email:        d.Email,
		PendingTasks: pending,
		DateCreated:  d.DateCreated.UTC(),
	}
}

func objectID(id models.ID) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

// objectIDs отбрасывает некорректные идентификаторы: они не могут совпасть ни с одной записью
func objectIDs(ids []models.ID) bson.A {
	out := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func findOptions(q query.Query) *options.FindOptions {
	opts := options.Find()
	if sort := toBSONSort(q.Sort); sort != nil {
		opts.SetSort(sort)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}

type mongoTasks struct {
	c *mongo.Collection
}

func (r mongoTasks) Find(ctx context.Context, q query.Query) ([]models.Task, error) {
	cursor, err := r.c.Find(ctx, toBSONFilter(q.Filter), findOptions(q))
	if err != nil {
		return nil, err
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.model())
	}
	return tasks, nil
}

func (r mongoTasks) Count(ctx context.Context, f query.Filter) (int64, error) {
	return r.c.CountDocuments(ctx, toBSONFilter(f))
}

func (r mongoTasks) Get(ctx context.Context, id models.ID) (*models.Task, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc taskDoc
	err = r.c.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	task := doc.model()
	return &task, nil
}

func (r mongoTasks) Insert(ctx context.Context, t *models.Task) error {
	doc := newTaskDoc(t)
	doc.ID = primitive.NewObjectID()
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		return err
	}
	t.ID = models.ID(doc.ID.Hex())
	return nil
}

func (r mongoTasks) Replace(ctx context.Context, t *models.Task) error {
	oid, err := objectID(t.ID)
	if err != nil {
		return err
	}
	doc := newTaskDoc(t)
	doc.ID = oid
	result, err := r.c.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoTasks) Delete(ctx context.Context, id models.ID) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := r.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoTasks) SetAssignee(ctx context.Context, ids []models.ID, a models.Assignment) error {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil
	}
	_, err := r.c.UpdateMany(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "assignedUser", Value: string(a.User)},
			{Key: "assignedUserName", Value: a.StoredUserName()},
		}}},
	)
	return err
}

func (r mongoTasks) ClearAssignee(ctx context.Context, user models.ID, only []models.ID) error {
	filter := bson.D{{Key: "assignedUser", Value: string(user)}}
	if only != nil {
		oids := objectIDs(only)
		if len(oids) == 0 {
			return nil
		}
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}})
	}
	_, err := r.c.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "assignedUser", Value: ""},
		{Key: "assignedUserName", Value: models.Unassigned},
	}}})
	return err
}

type mongoUsers struct {
	c *mongo.Collection
}

func (r mongoUsers) Find(ctx context.Context, q query.Query) ([]models.User, error) {
	cursor, err := r.c.Find(ctx, toBSONFilter(q.Filter), findOptions(q))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

func (r mongoUsers) Count(ctx context.Context, f query.Filter) (int64, error) {
	return r.c.CountDocuments(ctx, toBSONFilter(f))
}

func (r mongoUsers) Get(ctx context.Context, id models.ID) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r mongoUsers) FindByEmail(ctx context.Context, email string, exclude models.ID) (*models.User, error) {
	filter := bson.D{{Key: "email", Value: email}}
	if oid, err := primitive.ObjectIDFromHex(string(exclude)); err == nil {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: oid}}})
	}
	return r.findOne(ctx, filter)
}

func (r mongoUsers) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	err := r.c.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user := doc.model()
	return &user, nil
}

func (r mongoUsers) Insert(ctx context.Context, u *models.User) error {
	doc := newUserDoc(u)
	doc.ID = primitive.NewObjectID()
	_, err := r.c.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	u.ID = models.ID(doc.ID.Hex())
	return nil
}

func (r mongoUsers) Replace(ctx context.Context, u *models.User) error {
	oid, err := objectID(u.ID)
	if err != nil {
		return err
	}
	doc := newUserDoc(u)
	doc.ID = oid
	result, err := r.c.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoUsers) Delete(ctx context.Context, id models.ID) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := r.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoUsers) AddPendingTask(ctx context.Context, user, task models.ID) error {
	return r.updatePending(ctx, user, "$addToSet", task)
}

func (r mongoUsers) PullPendingTask(ctx context.Context, user, task models.ID) error {
	return r.updatePending(ctx, user, "$pull", task)
}

func (r mongoUsers) updatePending(ctx context.Context, user models.ID, op string, task models.ID) error {
	oid, err := objectID(user)
	if err != nil {
		// несуществующего пользователя обновлять нечего
		return nil
	}
	_, err = r.c.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: op, Value: bson.D{{Key: "pendingTasks", Value: string(task)}}}},
	)
	return err
}

func (r mongoUsers) PullPendingTaskEverywhere(ctx context.Context, task models.ID) error {
	_, err := r.c.UpdateMany(ctx,
		bson.D{{Key: "pendingTasks", Value: string(task)}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "pendingTasks", Value: string(task)}}}},
	)
	return err
}
