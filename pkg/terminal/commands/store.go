package commands

import (
	"sync"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// Store gives read access to the registered command descriptors
type Store interface {
	// TryFindByID returns the descriptor with the given id
	TryFindByID(id string) (*Descriptor, bool)

	// All returns every descriptor in registration order
	All() []*Descriptor

	// Children returns the descriptors owned by id
	Children(id string) []*Descriptor

	// Comparer returns the comparer used for command ids
	Comparer() text.TextComparer
}

// Counts is the number of registered commands per type
type Counts struct {
	Roots       int
	Groups      int
	SubCommands int
	Natives     int
}

// Count counts the descriptors of s per command type
func Count(s Store) Counts {
	var c Counts
	for _, d := range s.All() {
		switch d.Type {
		case TypeRoot:
			c.Roots++
		case TypeGroup:
			c.Groups++
		case TypeSubCommand:
			c.SubCommands++
		case TypeNativeCommand:
			c.Natives++
		}
	}
	return c
}

// index is the validated, immutable content of a store
type index struct {
	comparer text.TextComparer
	byID     map[string]*Descriptor
	ordered  []*Descriptor
}

func buildIndex(cmp text.TextComparer, descriptors []*Descriptor) (*index, error) {
	idx := &index{
		comparer: cmp,
		byID:     make(map[string]*Descriptor, len(descriptors)),
		ordered:  make([]*Descriptor, 0, len(descriptors)),
	}
	for _, d := range descriptors {
		if d == nil || d.ID == "" {
			return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command id cannot be empty")
		}
		if d.Type < TypeRoot || d.Type > TypeNativeCommand {
			return nil, terrors.New(terrors.CodeInvalidConfiguration,
				"the command type is not valid. command=%s type=%d", d.ID, d.Type)
		}
		key := cmp.Key(d.ID)
		if _, exists := idx.byID[key]; exists {
			return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command is already registered. command=%s", d.ID)
		}
		idx.byID[key] = d
		idx.ordered = append(idx.ordered, d)
	}

	for _, d := range idx.ordered {
		if err := idx.validateOwners(d); err != nil {
			return nil, err
		}
	}
	if err := idx.detectCycles(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *index) validateOwners(d *Descriptor) error {
	switch {
	case d.Type == TypeRoot && len(d.OwnerIDs) > 0:
		return terrors.New(terrors.CodeInvalidConfiguration, "the root command cannot have an owner. command=%s", d.ID)
	case d.Type != TypeRoot && d.Type != TypeNativeCommand && len(d.OwnerIDs) == 0:
		return terrors.New(terrors.CodeInvalidConfiguration,
			"the command must have at least one owner. command=%s type=%s", d.ID, d.Type)
	}
	for _, ownerID := range d.OwnerIDs {
		owner, ok := idx.byID[idx.comparer.Key(ownerID)]
		if !ok {
			return terrors.New(terrors.CodeInvalidConfiguration,
				"the command owner is not registered. command=%s owner=%s", d.ID, ownerID)
		}
		if owner.Type.IsLeaf() {
			return terrors.New(terrors.CodeInvalidConfiguration,
				"the command owner cannot be a %s. command=%s owner=%s", owner.Type, d.ID, ownerID)
		}
	}
	return nil
}

// detectCycles walks owner references. Only groups can own each other, so a
// cycle can only run through groups.
func (idx *index) detectCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(idx.byID))

	var visit func(d *Descriptor) error
	visit = func(d *Descriptor) error {
		key := idx.comparer.Key(d.ID)
		switch state[key] {
		case visiting:
			return terrors.New(terrors.CodeInvalidConfiguration, "the command hierarchy contains a cycle. command=%s", d.ID)
		case done:
			return nil
		}
		state[key] = visiting
		for _, ownerID := range d.OwnerIDs {
			if err := visit(idx.byID[idx.comparer.Key(ownerID)]); err != nil {
				return err
			}
		}
		state[key] = done
		return nil
	}

	for _, d := range idx.ordered {
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}

func (idx *index) find(id string) (*Descriptor, bool) {
	d, ok := idx.byID[idx.comparer.Key(id)]
	return d, ok
}

func (idx *index) all() []*Descriptor {
	out := make([]*Descriptor, len(idx.ordered))
	copy(out, idx.ordered)
	return out
}

func (idx *index) children(id string) []*Descriptor {
	var out []*Descriptor
	for _, d := range idx.ordered {
		if d.IsOwnedBy(id, idx.comparer) {
			out = append(out, d)
		}
	}
	return out
}

// ImmutableStore is validated once at construction and read-only afterwards
type ImmutableStore struct {
	idx *index
}

// NewImmutableStore validates descriptors and builds a store. A nil comparer
// means case sensitive.
func NewImmutableStore(cmp text.TextComparer, descriptors ...*Descriptor) (*ImmutableStore, error) {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	idx, err := buildIndex(cmp, descriptors)
	if err != nil {
		return nil, err
	}
	return &ImmutableStore{idx: idx}, nil
}

func (s *ImmutableStore) TryFindByID(id string) (*Descriptor, bool) { return s.idx.find(id) }
func (s *ImmutableStore) All() []*Descriptor                        { return s.idx.all() }
func (s *ImmutableStore) Children(id string) []*Descriptor          { return s.idx.children(id) }
func (s *ImmutableStore) Comparer() text.TextComparer               { return s.idx.comparer }

// MutableStore allows registering and removing descriptors at runtime.
// Every change is validated against the whole set and swapped in at once.
type MutableStore struct {
	mu  sync.RWMutex
	idx *index
}

// NewMutableStore creates a store with the given initial descriptors
func NewMutableStore(cmp text.TextComparer, descriptors ...*Descriptor) (*MutableStore, error) {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	idx, err := buildIndex(cmp, descriptors)
	if err != nil {
		return nil, err
	}
	return &MutableStore{idx: idx}, nil
}

// Add registers descriptors. Nothing is added when validation fails.
func (s *MutableStore) Add(descriptors ...*Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := buildIndex(s.idx.comparer, append(s.idx.all(), descriptors...))
	if err != nil {
		return err
	}
	s.idx = next
	return nil
}

// Remove unregisters a descriptor. A command that still owns others cannot
// be removed.
func (s *MutableStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.idx.find(id)
	if !ok {
		return terrors.New(terrors.CodeInvalidCommand, "the command is not registered. command=%s", id)
	}
	remaining := make([]*Descriptor, 0, len(s.idx.ordered))
	for _, other := range s.idx.ordered {
		if other != d {
			remaining = append(remaining, other)
		}
	}
	next, err := buildIndex(s.idx.comparer, remaining)
	if err != nil {
		return err
	}
	s.idx = next
	return nil
}

func (s *MutableStore) current() *index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}

func (s *MutableStore) TryFindByID(id string) (*Descriptor, bool) { return s.current().find(id) }
func (s *MutableStore) All() []*Descriptor                        { return s.current().all() }
func (s *MutableStore) Children(id string) []*Descriptor          { return s.current().children(id) }
func (s *MutableStore) Comparer() text.TextComparer               { return s.current().comparer }
