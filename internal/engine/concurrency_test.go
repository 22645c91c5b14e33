package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/pkg/api"
)

func TestConcurrentInstances_KeepPerInstanceOrder(t *testing.T) {
	ctx := context.Background()
	rt := NewInMemoryEngine()
	deploy(t, rt, userTaskDefinition("usertask", api.InitiatorAssignee))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := range workers {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()

			inst, err := rt.Start(ctx, actor, api.StartPayload{DefinitionKey: "usertask"})
			if err != nil {
				errs <- err
				return
			}
			page, err := rt.Tasks(ctx, actor, api.PageOf(0, 10))
			if err != nil {
				errs <- err
				return
			}
			if page.TotalItems != 1 {
				errs <- fmt.Errorf("%s: expected 1 task, got %d", actor, page.TotalItems)
				return
			}
			if page.Content[0].ProcessInstanceID != inst.ID {
				errs <- fmt.Errorf("%s: task of wrong instance", actor)
				return
			}
			if _, err := rt.Complete(ctx, actor, api.CompletePayload{TaskID: page.Content[0].ID}); err != nil {
				errs <- err
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	evs := rt.Events()
	require.Len(t, evs, workers*(len(startSequence)+len(completeSequence)))

	want := append(append([]api.EventType{}, startSequence...), completeSequence...)
	perInstance := make(map[string][]api.EventType)
	for i, ev := range evs {
		if i > 0 {
			assert.Greater(t, ev.Seq, evs[i-1].Seq)
		}
		perInstance[ev.ProcessInstanceID] = append(perInstance[ev.ProcessInstanceID], ev.Type)
	}
	assert.Len(t, perInstance, workers)
	for id, types := range perInstance {
		assert.Equal(t, want, types, "instance %s", id)
	}
}

func TestConcurrentComplete_OnlyOneWins(t *testing.T) {
	ctx := context.Background()
	rt := NewInMemoryEngine()
	deploy(t, rt, userTaskDefinition("usertask", "user1"))
	start(t, rt, "user1", "usertask")
	task := onlyTask(t, rt, "user1")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		invalid   int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rt.Complete(ctx, "user1", api.CompletePayload{TaskID: task.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, api.ErrInvalidState):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, invalid)
}
