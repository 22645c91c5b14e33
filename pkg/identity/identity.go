// Package identity supplies the acting user of runtime calls.
//
// The runtime itself takes the actor as an explicit argument on every call.
// A Session is a small convenience for callers that act as one user at a
// time, and a Directory lets an engine reject actors it does not know.
package identity

import (
	"fmt"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// Directory reports which actors exist.
type Directory interface {
	HasActor(id string) bool
}

// Check validates actor against dir. An empty actor is always rejected; a
// nil dir accepts every other actor.
func Check(dir Directory, actor string) error {
	if actor == "" {
		return fmt.Errorf("%w: no actor", api.ErrUnauthenticated)
	}
	if dir != nil && !dir.HasActor(actor) {
		return fmt.Errorf("%w: unknown actor %q", api.ErrUnauthenticated, actor)
	}
	return nil
}

// StaticDirectory is a fixed, goroutine-safe set of actors.
type StaticDirectory struct {
	mu     sync.RWMutex
	actors map[string]struct{}
}

var _ Directory = (*StaticDirectory)(nil)

// NewStaticDirectory returns a directory that knows the given actors.
func NewStaticDirectory(actors ...string) *StaticDirectory {
	d := &StaticDirectory{actors: make(map[string]struct{}, len(actors))}
	for _, a := range actors {
		d.actors[a] = struct{}{}
	}
	return d
}

// Add registers more actors.
func (d *StaticDirectory) Add(actors ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range actors {
		d.actors[a] = struct{}{}
	}
}

func (d *StaticDirectory) HasActor(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.actors[id]
	return ok
}

// Session holds the actor currently logged in.
type Session struct {
	dir Directory

	mu    sync.RWMutex
	actor string
}

// NewSession returns an anonymous session. dir may be nil.
func NewSession(dir Directory) *Session {
	return &Session{dir: dir}
}

// LogInAs makes id the current actor.
func (s *Session) LogInAs(id string) error {
	if err := Check(s.dir, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = id
	return nil
}

// LogOut returns the session to the anonymous state.
func (s *Session) LogOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = ""
}

// CurrentActor returns the logged-in actor, or api.ErrUnauthenticated.
func (s *Session) CurrentActor() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actor == "" {
		return "", fmt.Errorf("%w: not logged in", api.ErrUnauthenticated)
	}
	return s.actor, nil
}
