package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/taskflow/pkg/api"
)

// mongoTimeout bounds every single store call.
const mongoTimeout = 5 * time.Second

// MongoStore is an InstanceStore and TaskStore backed by MongoDB.
// Instances and tasks live in two collections of the same database.
// Commit uses multi-document transactions, so the server must be a replica
// set member or a mongos; a single-node replica set is enough.
type MongoStore struct {
	instances *mongo.Collection
	tasks     *mongo.Collection
}

var (
	_ InstanceStore = (*MongoStore)(nil)
	_ TaskStore     = (*MongoStore)(nil)
	_ Committer     = (*MongoStore)(nil)
)

// NewMongoStore creates a Mongo-backed store.
// dbName defaults to "taskflow" if empty.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	if dbName == "" {
		dbName = "taskflow"
	}
	db := client.Database(dbName)
	return &MongoStore{
		instances: db.Collection("process_instances"),
		tasks:     db.Collection("tasks"),
	}
}

type mongoInstanceDoc struct {
	ID              string `bson:"_id"`
	DefinitionKey   string `bson:"definition_key"`
	BusinessKey     string `bson:"business_key"`
	Name            string `bson:"name"`
	Initiator       string `bson:"initiator"`
	Status          string `bson:"status"`
	CurrentActivity string `bson:"current_activity"`
	Variables       []byte `bson:"variables,omitempty"`
	StartedAt       int64  `bson:"started_at"`
	EndedAt         int64  `bson:"ended_at"`
}

type mongoTaskDoc struct {
	ID                string `bson:"_id"`
	Name              string `bson:"name"`
	ProcessInstanceID string `bson:"process_instance_id"`
	DefinitionKey     string `bson:"definition_key"`
	ActivityID        string `bson:"activity_id"`
	Assignee          string `bson:"assignee"`
	Status            string `bson:"status"`
	CreatedAt         int64  `bson:"created_at"`
	EndedAt           int64  `bson:"ended_at"`
}

func toMongoInstance(inst *api.ProcessInstance) (mongoInstanceDoc, error) {
	vars, err := EncodeVariables(inst.Variables)
	if err != nil {
		return mongoInstanceDoc{}, err
	}
	return mongoInstanceDoc{
		ID:              inst.ID,
		DefinitionKey:   inst.DefinitionKey,
		BusinessKey:     inst.BusinessKey,
		Name:            inst.Name,
		Initiator:       inst.Initiator,
		Status:          string(inst.Status),
		CurrentActivity: inst.CurrentActivity,
		Variables:       vars,
		StartedAt:       toNanos(inst.StartedAt),
		EndedAt:         toNanos(inst.EndedAt),
	}, nil
}

func (d mongoInstanceDoc) toAPI() (*api.ProcessInstance, error) {
	vars, err := DecodeVariables(d.Variables)
	if err != nil {
		return nil, err
	}
	return &api.ProcessInstance{
		ID:              d.ID,
		DefinitionKey:   d.DefinitionKey,
		BusinessKey:     d.BusinessKey,
		Name:            d.Name,
		Initiator:       d.Initiator,
		Status:          api.ProcessStatus(d.Status),
		CurrentActivity: d.CurrentActivity,
		Variables:       vars,
		StartedAt:       fromNanos(d.StartedAt),
		EndedAt:         fromNanos(d.EndedAt),
	}, nil
}

func toMongoTask(t *api.Task) mongoTaskDoc {
	return mongoTaskDoc{
		ID:                t.ID,
		Name:              t.Name,
		ProcessInstanceID: t.ProcessInstanceID,
		DefinitionKey:     t.ProcessDefinitionKey,
		ActivityID:        t.ActivityID,
		Assignee:          t.Assignee,
		Status:            string(t.Status),
		CreatedAt:         toNanos(t.CreatedAt),
		EndedAt:           toNanos(t.EndedAt),
	}
}

func (d mongoTaskDoc) toAPI() *api.Task {
	return &api.Task{
		ID:                   d.ID,
		Name:                 d.Name,
		ProcessInstanceID:    d.ProcessInstanceID,
		ProcessDefinitionKey: d.DefinitionKey,
		ActivityID:           d.ActivityID,
		Assignee:             d.Assignee,
		Status:               api.TaskStatus(d.Status),
		CreatedAt:            fromNanos(d.CreatedAt),
		EndedAt:              fromNanos(d.EndedAt),
	}
}

func (s *MongoStore) SaveInstance(ctx context.Context, inst *api.ProcessInstance) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	doc, err := toMongoInstance(inst)
	if err != nil {
		return err
	}
	_, err = s.instances.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	doc, err := toMongoInstance(inst)
	if err != nil {
		return err
	}
	res, err := s.instances.ReplaceOne(ctx, bson.M{"_id": inst.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (s *MongoStore) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoInstanceDoc
	if err := s.instances.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return doc.toAPI()
}

func (s *MongoStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	q := bson.M{}
	if filter.DefinitionKey != "" {
		q["definition_key"] = filter.DefinitionKey
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}

	cur, err := s.instances.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var instances []*api.ProcessInstance
	for cur.Next(ctx) {
		var doc mongoInstanceDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		inst, err := doc.toAPI()
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, cur.Err()
}

func (s *MongoStore) SaveTask(ctx context.Context, t *api.Task) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := s.tasks.InsertOne(ctx, toMongoTask(t))
	return err
}

func (s *MongoStore) UpdateTask(ctx context.Context, t *api.Task) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := s.tasks.ReplaceOne(ctx, bson.M{"_id": t.ID}, toMongoTask(t))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (*api.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoTaskDoc
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return doc.toAPI(), nil
}

func (s *MongoStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	q := bson.M{}
	if filter.Assignee != "" {
		q["assignee"] = filter.Assignee
	}
	if filter.ProcessInstanceID != "" {
		q["process_instance_id"] = filter.ProcessInstanceID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q["status"] = bson.M{"$in": statuses}
	}

	cur, err := s.tasks.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []*api.Task
	for cur.Next(ctx) {
		var doc mongoTaskDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		tasks = append(tasks, doc.toAPI())
	}
	return tasks, cur.Err()
}

// Commit applies c in one multi-document transaction.
func (s *MongoStore) Commit(ctx context.Context, c Change) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	inst, err := toMongoInstance(c.Instance)
	if err != nil {
		return err
	}

	sess, err := s.instances.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if c.NewInstance {
			if _, err := s.instances.InsertOne(sc, inst); err != nil {
				return nil, err
			}
		} else {
			res, err := s.instances.ReplaceOne(sc, bson.M{"_id": inst.ID}, inst)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, ErrInstanceNotFound
			}
		}
		for _, t := range c.Created {
			if _, err := s.tasks.InsertOne(sc, toMongoTask(t)); err != nil {
				return nil, err
			}
		}
		for _, t := range c.Updated {
			res, err := s.tasks.ReplaceOne(sc, bson.M{"_id": t.ID}, toMongoTask(t))
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, ErrTaskNotFound
			}
		}
		return nil, nil
	})
	return err
}
