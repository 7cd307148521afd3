package runtime

import (
	"sort"
	"sync"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// DefaultCheckerName is the checker used by descriptors that name none
const DefaultCheckerName = "default"

// CheckerFactory builds the checker for a descriptor
type CheckerFactory func(d *commands.Descriptor) (Checker, error)

// RunnerFactory builds the runner for a descriptor
type RunnerFactory func(d *commands.Descriptor) (Runner, error)

// Resolver resolves the checker and runner bound to a descriptor
type Resolver interface {
	ResolveChecker(d *commands.Descriptor) (Checker, error)
	ResolveRunner(d *commands.Descriptor) (Runner, error)
}

// Registry is a factory table keyed by the binding names descriptors carry
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]CheckerFactory
	runners  map[string]RunnerFactory
}

// NewRegistry creates a registry with the default checker registered
func NewRegistry() *Registry {
	r := &Registry{
		checkers: make(map[string]CheckerFactory),
		runners:  make(map[string]RunnerFactory),
	}
	r.checkers[DefaultCheckerName] = func(*commands.Descriptor) (Checker, error) {
		return DefaultChecker{}, nil
	}
	return r
}

// RegisterCheckerFactory registers a checker factory under name
func (r *Registry) RegisterCheckerFactory(name string, factory CheckerFactory) error {
	if name == "" || factory == nil {
		return terrors.New(terrors.CodeInvalidConfiguration, "the checker name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checkers[name]; exists {
		return terrors.New(terrors.CodeInvalidConfiguration, "the checker is already registered. checker=%s", name)
	}
	r.checkers[name] = factory
	return nil
}

// RegisterChecker registers a shared checker instance under name
func (r *Registry) RegisterChecker(name string, checker Checker) error {
	if checker == nil {
		return terrors.New(terrors.CodeInvalidConfiguration, "the checker is required. checker=%s", name)
	}
	return r.RegisterCheckerFactory(name, func(*commands.Descriptor) (Checker, error) { return checker, nil })
}

// RegisterRunnerFactory registers a runner factory under name
func (r *Registry) RegisterRunnerFactory(name string, factory RunnerFactory) error {
	if name == "" || factory == nil {
		return terrors.New(terrors.CodeInvalidConfiguration, "the runner name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runners[name]; exists {
		return terrors.New(terrors.CodeInvalidConfiguration, "the runner is already registered. runner=%s", name)
	}
	r.runners[name] = factory
	return nil
}

// RegisterRunner registers a shared runner instance under name
func (r *Registry) RegisterRunner(name string, runner Runner) error {
	if runner == nil {
		return terrors.New(terrors.CodeInvalidConfiguration, "the runner is required. runner=%s", name)
	}
	return r.RegisterRunnerFactory(name, func(*commands.Descriptor) (Runner, error) { return runner, nil })
}

// ResolveChecker implements Resolver. An empty binding resolves to the
// default checker.
func (r *Registry) ResolveChecker(d *commands.Descriptor) (Checker, error) {
	name := d.Checker
	if name == "" {
		name = DefaultCheckerName
	}
	r.mu.RLock()
	factory, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, terrors.New(terrors.CodeServerError,
			"the command checker is not registered. command=%s checker=%s", d.ID, name)
	}
	checker, err := factory(d)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeServerError,
			"failed to create the command checker. command=%s checker=%s", d.ID, name)
	}
	if checker == nil {
		return nil, terrors.New(terrors.CodeServerError,
			"the command checker factory returned nothing. command=%s checker=%s", d.ID, name)
	}
	return checker, nil
}

// ResolveRunner implements Resolver
func (r *Registry) ResolveRunner(d *commands.Descriptor) (Runner, error) {
	if d.Runner == "" {
		return nil, terrors.New(terrors.CodeServerError, "the command has no runner. command=%s", d.ID)
	}
	r.mu.RLock()
	factory, ok := r.runners[d.Runner]
	r.mu.RUnlock()
	if !ok {
		return nil, terrors.New(terrors.CodeServerError,
			"the command runner is not registered. command=%s runner=%s", d.ID, d.Runner)
	}
	runner, err := factory(d)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeServerError,
			"failed to create the command runner. command=%s runner=%s", d.ID, d.Runner)
	}
	if runner == nil {
		return nil, terrors.New(terrors.CodeServerError,
			"the command runner factory returned nothing. command=%s runner=%s", d.ID, d.Runner)
	}
	return runner, nil
}

// Verify checks that every descriptor of store resolves. Hosts call it at
// startup so binding mistakes fail before the first request.
func (r *Registry) Verify(store commands.Store) error {
	for _, d := range store.All() {
		if _, err := r.ResolveChecker(d); err != nil {
			return err
		}
		if d.Type.IsLeaf() || d.Runner != "" {
			if _, err := r.ResolveRunner(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the registered checker and runner names, sorted
func (r *Registry) Names() (checkers []string, runners []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.checkers {
		checkers = append(checkers, name)
	}
	for name := range r.runners {
		runners = append(runners, name)
	}
	sort.Strings(checkers)
	sort.Strings(runners)
	return checkers, runners
}
