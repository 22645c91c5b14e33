package persistence

import (
	"context"
	"reflect"
)

// NewCommitter returns the Committer used to write changes to instances and
// tasks. When both are the same store and it implements Committer, its
// atomic Commit is used. Otherwise the writes are applied one by one, and a
// failure part way through can leave earlier writes in place.
func NewCommitter(instances InstanceStore, tasks TaskStore) Committer {
	if c, ok := instances.(Committer); ok && sameStore(instances, tasks) {
		return c
	}
	return sequentialCommitter{instances: instances, tasks: tasks}
}

// sameStore reports whether instances and tasks hold the same store value.
func sameStore(instances InstanceStore, tasks TaskStore) bool {
	t := reflect.TypeOf(instances)
	return t != nil && t.Comparable() && any(instances) == any(tasks)
}

type sequentialCommitter struct {
	instances InstanceStore
	tasks     TaskStore
}

func (s sequentialCommitter) Commit(ctx context.Context, c Change) error {
	if c.NewInstance {
		if err := s.instances.SaveInstance(ctx, c.Instance); err != nil {
			return err
		}
	} else {
		if err := s.instances.UpdateInstance(ctx, c.Instance); err != nil {
			return err
		}
	}
	for _, t := range c.Created {
		if err := s.tasks.SaveTask(ctx, t); err != nil {
			return err
		}
	}
	for _, t := range c.Updated {
		if err := s.tasks.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
