package modification

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultDescription is listed for modifications registered without one.
const DefaultDescription = "No description available"

// Modification is a unit of work executed inside a run's transaction. It must
// perform every write through the transaction it was built with, never commit
// or roll back itself, and return promptly once ctx is done.
type Modification interface {
	Run(ctx context.Context, mode Mode) error
}

// ModificationFunc adapts a function to Modification.
type ModificationFunc func(ctx context.Context, mode Mode) error

func (f ModificationFunc) Run(ctx context.Context, mode Mode) error {
	return f(ctx, mode)
}

// Deps are the run-scoped collaborators a factory binds a modification to.
type Deps struct {
	// Tx is the run's transaction. The session owns its lifecycle.
	Tx *sql.Tx
	// Logger writes into the run's event stream.
	Logger *slog.Logger
}

// Factory builds a modification for one run.
type Factory func(deps Deps) Modification

// Info describes a registered modification.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entry struct {
	info    Info
	factory Factory
}

// Registry maps modification names to factories. It is filled once at
// startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a modification. Names are unique and case-sensitive.
func (r *Registry) Register(name, description string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("register modification: name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("register modification %q: factory must not be nil", name)
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("register modification %q: already exists", name)
	}
	r.entries[name] = entry{info: Info{Name: name, Description: description}, factory: factory}
	r.order = append(r.order, name)
	return nil
}

// List returns every modification in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.entries[name].info)
	}
	return infos
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.factory, true
}
