package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/taskflow/pkg/api"
)

// RedisStore is an InstanceStore and TaskStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>inst:<id>                 => gob-encoded redisInstancePayload
//	<prefix>task:<id>                 => gob-encoded redisTaskPayload
//	<prefix>idx:inst:all              => SET of all instance IDs
//	<prefix>idx:inst:def:<key>        => SET of instance IDs for a definition
//	<prefix>idx:task:all              => SET of all task IDs
//	<prefix>idx:task:assignee:<actor> => SET of task IDs ever assigned to actor
//	<prefix>idx:task:inst:<id>        => SET of task IDs of an instance
//
// The indexes are best-effort supersets: they are updated on Save/Update but
// never pruned, and List* re-checks every decoded payload against the filter.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var (
	_ InstanceStore = (*RedisStore)(nil)
	_ TaskStore     = (*RedisStore)(nil)
	_ Committer     = (*RedisStore)(nil)
)

type redisInstancePayload struct {
	ID              string
	DefinitionKey   string
	BusinessKey     string
	Name            string
	Initiator       string
	Status          string
	CurrentActivity string
	Variables       []byte
	StartedAt       int64
	EndedAt         int64
}

type redisTaskPayload struct {
	ID                string
	Name              string
	ProcessInstanceID string
	DefinitionKey     string
	ActivityID        string
	Assignee          string
	Status            string
	CreatedAt         int64
	EndedAt           int64
}

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "taskflow:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "taskflow:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) keyInstance(id string) string { return s.prefix + "inst:" + id }
func (s *RedisStore) keyTask(id string) string { return s.prefix + "task:" + id }
func (s *RedisStore) keyInstancesAll() string { return s.prefix + "idx:inst:all" }
func (s *RedisStore) keyInstancesByDef(key string) string { return s.prefix + "idx:inst:def:" + key }
func (s *RedisStore) keyTasksAll() string { return s.prefix + "idx:task:all" }
func (s *RedisStore) keyTasksByAssignee(a string) string { return s.prefix + "idx:task:assignee:" + a }
func (s *RedisStore) keyTasksByInstance(id string) string { return s.prefix + "idx:task:inst:" + id }

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRedisInstance(inst *api.ProcessInstance) ([]byte, error) {
	vars, err := EncodeVariables(inst.Variables)
	if err != nil {
		return nil, err
	}
	return gobEncode(&redisInstancePayload{
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
	})
}

func decodeRedisInstance(data []byte) (*api.ProcessInstance, error) {
	var p redisInstancePayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	vars, err := DecodeVariables(p.Variables)
	if err != nil {
		return nil, err
	}
	return &api.ProcessInstance{
		ID:              p.ID,
		DefinitionKey:   p.DefinitionKey,
		BusinessKey:     p.BusinessKey,
		Name:            p.Name,
		Initiator:       p.Initiator,
		Status:          api.ProcessStatus(p.Status),
		CurrentActivity: p.CurrentActivity,
		Variables:       vars,
		StartedAt:       fromNanos(p.StartedAt),
		EndedAt:         fromNanos(p.EndedAt),
	}, nil
}

func encodeRedisTask(t *api.Task) ([]byte, error) {
	return gobEncode(&redisTaskPayload{
		ID:                t.ID,
		Name:              t.Name,
		ProcessInstanceID: t.ProcessInstanceID,
		DefinitionKey:     t.ProcessDefinitionKey,
		ActivityID:        t.ActivityID,
		Assignee:          t.Assignee,
		Status:            string(t.Status),
		CreatedAt:         toNanos(t.CreatedAt),
		EndedAt:           toNanos(t.EndedAt),
	})
}

func decodeRedisTask(data []byte) (*api.Task, error) {
	var p redisTaskPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	return &api.Task{
		ID:                   p.ID,
		Name:                 p.Name,
		ProcessInstanceID:    p.ProcessInstanceID,
		ProcessDefinitionKey: p.DefinitionKey,
		ActivityID:           p.ActivityID,
		Assignee:             p.Assignee,
		Status:               api.TaskStatus(p.Status),
		CreatedAt:            fromNanos(p.CreatedAt),
		EndedAt:              fromNanos(p.EndedAt),
	}, nil
}

func (s *RedisStore) SaveInstance(ctx context.Context, inst *api.ProcessInstance) error {
	data, err := encodeRedisInstance(inst)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyInstance(inst.ID), data, 0)
	pipe.SAdd(ctx, s.keyInstancesAll(), inst.ID)
	pipe.SAdd(ctx, s.keyInstancesByDef(inst.DefinitionKey), inst.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error {
	data, err := encodeRedisInstance(inst)
	if err != nil {
		return err
	}

	// SET XX only overwrites existing keys.
	ok, err := s.client.SetXX(ctx, s.keyInstance(inst.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrInstanceNotFound
	}
	return nil
}

func (s *RedisStore) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	data, err := s.client.Get(ctx, s.keyInstance(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeRedisInstance(data)
}

func (s *RedisStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error) {
	index := s.keyInstancesAll()
	if filter.DefinitionKey != "" {
		index = s.keyInstancesByDef(filter.DefinitionKey)
	}

	payloads, err := s.loadIndexed(ctx, index, s.keyInstance)
	if err != nil {
		return nil, err
	}

	var instances []*api.ProcessInstance
	for _, data := range payloads {
		inst, err := decodeRedisInstance(data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(inst) {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

func (s *RedisStore) SaveTask(ctx context.Context, t *api.Task) error {
	data, err := encodeRedisTask(t)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyTask(t.ID), data, 0)
	s.indexTask(ctx, pipe, t)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateTask(ctx context.Context, t *api.Task) error {
	data, err := encodeRedisTask(t)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.keyTask(t.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTaskNotFound
	}

	// The assignee may have changed; the new one needs an index entry.
	pipe := s.client.TxPipeline()
	s.indexTask(ctx, pipe, t)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) indexTask(ctx context.Context, pipe redis.Pipeliner, t *api.Task) {
	pipe.SAdd(ctx, s.keyTasksAll(), t.ID)
	pipe.SAdd(ctx, s.keyTasksByInstance(t.ProcessInstanceID), t.ID)
	if t.Assignee != "" {
		pipe.SAdd(ctx, s.keyTasksByAssignee(t.Assignee), t.ID)
	}
}

func (s *RedisStore) GetTask(ctx context.Context, id string) (*api.Task, error) {
	data, err := s.client.Get(ctx, s.keyTask(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return decodeRedisTask(data)
}

func (s *RedisStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error) {
	var index string
	switch {
	case filter.Assignee != "":
		index = s.keyTasksByAssignee(filter.Assignee)
	case filter.ProcessInstanceID != "":
		index = s.keyTasksByInstance(filter.ProcessInstanceID)
	default:
		index = s.keyTasksAll()
	}

	payloads, err := s.loadIndexed(ctx, index, s.keyTask)
	if err != nil {
		return nil, err
	}

	var tasks []*api.Task
	for _, data := range payloads {
		t, err := decodeRedisTask(data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(t) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// Commit applies c in one MULTI/EXEC. Every written key is watched, and the
// update targets are checked for existence before the transaction is queued.
// A concurrent write to a watched key fails the commit with redis.TxFailedErr.
func (s *RedisStore) Commit(ctx context.Context, c Change) error {
	inst, err := encodeRedisInstance(c.Instance)
	if err != nil {
		return err
	}
	payloads := make(map[string][]byte, len(c.Created)+len(c.Updated))
	keys := []string{s.keyInstance(c.Instance.ID)}
	for _, t := range slices.Concat(c.Created, c.Updated) {
		data, err := encodeRedisTask(t)
		if err != nil {
			return err
		}
		payloads[t.ID] = data
		keys = append(keys, s.keyTask(t.ID))
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		if !c.NewInstance {
			if err := s.mustExist(ctx, tx, s.keyInstance(c.Instance.ID), ErrInstanceNotFound); err != nil {
				return err
			}
		}
		for _, t := range c.Updated {
			if err := s.mustExist(ctx, tx, s.keyTask(t.ID), ErrTaskNotFound); err != nil {
				return err
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.keyInstance(c.Instance.ID), inst, 0)
			pipe.SAdd(ctx, s.keyInstancesAll(), c.Instance.ID)
			pipe.SAdd(ctx, s.keyInstancesByDef(c.Instance.DefinitionKey), c.Instance.ID)
			for _, t := range slices.Concat(c.Created, c.Updated) {
				pipe.Set(ctx, s.keyTask(t.ID), payloads[t.ID], 0)
				s.indexTask(ctx, pipe, t)
			}
			return nil
		})
		return err
	}, keys...)
}

func (s *RedisStore) mustExist(ctx context.Context, tx *redis.Tx, key string, notFound error) error {
	n, err := tx.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// loadIndexed fetches the payloads of every member of an index set.
// Members whose payload has disappeared are skipped.
func (s *RedisStore) loadIndexed(ctx context.Context, index string, key func(string) string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([][]byte, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
