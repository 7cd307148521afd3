package commands

import (
	"sort"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// OptionDescriptor describes an option a command accepts
type OptionDescriptor struct {
	ID            string
	Alias         string
	DataType      DataType
	Description   string
	Flags         Flags
	ValueCheckers []ValueChecker
}

// ArgumentDescriptor describes a positional argument. Order is 1-based.
type ArgumentDescriptor struct {
	ID            string
	Order         int
	DataType      DataType
	Description   string
	Flags         Flags
	ValueCheckers []ValueChecker
}

// OptionDescriptors is a set of options keyed by both id and alias. Both keys
// point to the same descriptor instance.
type OptionDescriptors struct {
	comparer text.TextComparer
	byKey    map[string]*OptionDescriptor
	ordered  []*OptionDescriptor
}

// NewOptionDescriptors builds an option set. An id or alias used twice fails
// with DuplicateOption.
func NewOptionDescriptors(cmp text.TextComparer, options ...*OptionDescriptor) (*OptionDescriptors, error) {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	set := &OptionDescriptors{
		comparer: cmp,
		byKey:    make(map[string]*OptionDescriptor, len(options)*2),
		ordered:  make([]*OptionDescriptor, 0, len(options)),
	}
	for _, opt := range options {
		if opt == nil || opt.ID == "" {
			return nil, terrors.New(terrors.CodeInvalidConfiguration, "the option id cannot be empty")
		}
		keys := []string{opt.ID}
		if opt.Alias != "" {
			keys = append(keys, opt.Alias)
		}
		for _, k := range keys {
			if _, exists := set.byKey[cmp.Key(k)]; exists {
				return nil, terrors.New(terrors.CodeDuplicateOption,
					"the option id or alias is already used. option=%s key=%s", opt.ID, k)
			}
			set.byKey[cmp.Key(k)] = opt
		}
		set.ordered = append(set.ordered, opt)
	}
	return set, nil
}

// Lookup finds an option by id or alias
func (s *OptionDescriptors) Lookup(idOrAlias string) (*OptionDescriptor, bool) {
	if s == nil {
		return nil, false
	}
	opt, ok := s.byKey[s.comparer.Key(idOrAlias)]
	return opt, ok
}

// Len returns the number of options
func (s *OptionDescriptors) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ordered)
}

// All returns the options in registration order
func (s *OptionDescriptors) All() []*OptionDescriptor {
	if s == nil {
		return nil
	}
	out := make([]*OptionDescriptor, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// ArgumentDescriptors is an ordered set of positional arguments
type ArgumentDescriptors struct {
	comparer text.TextComparer
	byID     map[string]*ArgumentDescriptor
	ordered  []*ArgumentDescriptor
}

// NewArgumentDescriptors builds an argument set. Arguments without an Order
// get the next free position. A repeated id or order fails with
// DuplicateArgument.
func NewArgumentDescriptors(cmp text.TextComparer, args ...*ArgumentDescriptor) (*ArgumentDescriptors, error) {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	set := &ArgumentDescriptors{
		comparer: cmp,
		byID:     make(map[string]*ArgumentDescriptor, len(args)),
	}
	orders := make(map[int]bool, len(args))
	for _, arg := range args {
		if arg == nil || arg.ID == "" {
			return nil, terrors.New(terrors.CodeInvalidConfiguration, "the argument id cannot be empty")
		}
		if _, exists := set.byID[cmp.Key(arg.ID)]; exists {
			return nil, terrors.New(terrors.CodeDuplicateArgument, "the argument id is already used. argument=%s", arg.ID)
		}
		if arg.Order < 0 {
			return nil, terrors.New(terrors.CodeInvalidConfiguration,
				"the argument order cannot be negative. argument=%s order=%d", arg.ID, arg.Order)
		}
		if arg.Order == 0 {
			next := 1
			for orders[next] {
				next++
			}
			arg.Order = next
		}
		if orders[arg.Order] {
			return nil, terrors.New(terrors.CodeDuplicateArgument,
				"the argument order is already used. argument=%s order=%d", arg.ID, arg.Order)
		}
		orders[arg.Order] = true
		set.byID[cmp.Key(arg.ID)] = arg
		set.ordered = append(set.ordered, arg)
	}
	sort.Slice(set.ordered, func(i, j int) bool {
		return set.ordered[i].Order < set.ordered[j].Order
	})
	return set, nil
}

// Lookup finds an argument by id
func (s *ArgumentDescriptors) Lookup(id string) (*ArgumentDescriptor, bool) {
	if s == nil {
		return nil, false
	}
	arg, ok := s.byID[s.comparer.Key(id)]
	return arg, ok
}

// At returns the argument at the given 1-based order
func (s *ArgumentDescriptors) At(order int) (*ArgumentDescriptor, bool) {
	if s == nil {
		return nil, false
	}
	for _, arg := range s.ordered {
		if arg.Order == order {
			return arg, true
		}
	}
	return nil, false
}

// Len returns the number of arguments
func (s *ArgumentDescriptors) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ordered)
}

// All returns the arguments sorted by order
func (s *ArgumentDescriptors) All() []*ArgumentDescriptor {
	if s == nil {
		return nil
	}
	out := make([]*ArgumentDescriptor, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Descriptor is the static registration of a command
type Descriptor struct {
	ID          string
	Name        string
	Description string
	Type        CommandType
	Flags       Flags
	Arguments   *ArgumentDescriptors
	Options     *OptionDescriptors
	OwnerIDs    []string
	TagIDs      []string
	Properties  map[string]string

	// Checker and Runner name the implementations registered with the
	// runtime registry.
	Checker string
	Runner  string
}

// IsOwnedBy reports whether ownerID is one of the descriptor's owners
func (d *Descriptor) IsOwnedBy(ownerID string, cmp text.TextComparer) bool {
	if cmp == nil {
		cmp = text.CaseSensitive
	}
	for _, id := range d.OwnerIDs {
		if cmp.Equal(id, ownerID) {
			return true
		}
	}
	return false
}

// DisplayName returns Name, falling back to ID
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
