package commands

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

func hierarchy() []*Descriptor {
	return []*Descriptor{
		{ID: "pi", Type: TypeRoot},
		{ID: "math", Type: TypeGroup, OwnerIDs: []string{"pi"}},
		{ID: "add", Type: TypeSubCommand, OwnerIDs: []string{"math"}},
		{ID: "sub", Type: TypeSubCommand, OwnerIDs: []string{"math"}},
		{ID: "status", Type: TypeSubCommand, OwnerIDs: []string{"pi"}},
		{ID: "ping", Type: TypeNativeCommand},
	}
}

func TestImmutableStore(t *testing.T) {
	store, err := NewImmutableStore(nil, hierarchy()...)
	require.NoError(t, err)

	d, ok := store.TryFindByID("math")
	require.True(t, ok)
	assert.Equal(t, TypeGroup, d.Type)

	_, ok = store.TryFindByID("MATH")
	assert.False(t, ok)

	assert.Len(t, store.All(), 6)
	assert.Len(t, store.Children("math"), 2)
	assert.Equal(t, Counts{Roots: 1, Groups: 1, SubCommands: 3, Natives: 1}, Count(store))
}

func TestImmutableStore_CaseInsensitive(t *testing.T) {
	store, err := NewImmutableStore(text.CaseInsensitive, hierarchy()...)
	require.NoError(t, err)

	_, ok := store.TryFindByID("MATH")
	assert.True(t, ok)
}

func TestImmutableStore_Validation(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []*Descriptor
	}{
		{"empty id", []*Descriptor{{Type: TypeRoot}}},
		{"invalid type", []*Descriptor{{ID: "x"}}},
		{"duplicate id", []*Descriptor{{ID: "pi", Type: TypeRoot}, {ID: "pi", Type: TypeRoot}}},
		{"root with owner", []*Descriptor{{ID: "a", Type: TypeRoot}, {ID: "b", Type: TypeRoot, OwnerIDs: []string{"a"}}}},
		{"group without owner", []*Descriptor{{ID: "g", Type: TypeGroup}}},
		{"unknown owner", []*Descriptor{{ID: "s", Type: TypeSubCommand, OwnerIDs: []string{"nope"}}}},
		{"leaf owner", []*Descriptor{
			{ID: "n", Type: TypeNativeCommand},
			{ID: "s", Type: TypeSubCommand, OwnerIDs: []string{"n"}},
		}},
		{"cycle", []*Descriptor{
			{ID: "g1", Type: TypeGroup, OwnerIDs: []string{"g2"}},
			{ID: "g2", Type: TypeGroup, OwnerIDs: []string{"g1"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImmutableStore(nil, tt.descriptors...)
			require.Error(t, err)
			assert.True(t, terrors.HasCode(err, terrors.CodeInvalidConfiguration), "got %v", err)
		})
	}
}

func TestMutableStore(t *testing.T) {
	store, err := NewMutableStore(nil, hierarchy()...)
	require.NoError(t, err)

	require.NoError(t, store.Add(&Descriptor{ID: "mul", Type: TypeSubCommand, OwnerIDs: []string{"math"}}))
	_, ok := store.TryFindByID("mul")
	assert.True(t, ok)

	err = store.Add(&Descriptor{ID: "div", Type: TypeSubCommand, OwnerIDs: []string{"missing"}})
	require.Error(t, err)
	_, ok = store.TryFindByID("div")
	assert.False(t, ok)

	// math still owns add, sub and mul
	err = store.Remove("math")
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidConfiguration))

	require.NoError(t, store.Remove("mul"))
	assert.Len(t, store.Children("math"), 2)

	err = store.Remove("mul")
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidCommand))
}

func TestOptionDescriptors(t *testing.T) {
	name := &OptionDescriptor{ID: "name", Alias: "n"}
	verbose := &OptionDescriptor{ID: "verbose", DataType: DataTypeBoolean}

	set, err := NewOptionDescriptors(nil, name, verbose)
	require.NoError(t, err)

	byID, ok := set.Lookup("name")
	require.True(t, ok)
	byAlias, ok := set.Lookup("n")
	require.True(t, ok)
	assert.Same(t, byID, byAlias)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []*OptionDescriptor{name, verbose}, set.All())

	_, err = NewOptionDescriptors(nil, name, &OptionDescriptor{ID: "n"})
	assert.True(t, terrors.HasCode(err, terrors.CodeDuplicateOption))

	_, err = NewOptionDescriptors(text.CaseInsensitive, name, &OptionDescriptor{ID: "NAME"})
	assert.True(t, terrors.HasCode(err, terrors.CodeDuplicateOption))

	var empty *OptionDescriptors
	_, ok = empty.Lookup("name")
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
}

func TestArgumentDescriptors(t *testing.T) {
	set, err := NewArgumentDescriptors(nil,
		&ArgumentDescriptor{ID: "second", Order: 2},
		&ArgumentDescriptor{ID: "first"},
		&ArgumentDescriptor{ID: "third"},
	)
	require.NoError(t, err)

	all := set.All()
	require.Len(t, all, 3)
	assert.Equal(t, "second", all[1].ID)
	assert.Equal(t, 1, all[0].Order)
	assert.Equal(t, "first", all[0].ID)
	assert.Equal(t, 3, all[2].Order)

	arg, ok := set.At(2)
	require.True(t, ok)
	assert.Equal(t, "second", arg.ID)

	_, err = NewArgumentDescriptors(nil, &ArgumentDescriptor{ID: "a"}, &ArgumentDescriptor{ID: "a"})
	assert.True(t, terrors.HasCode(err, terrors.CodeDuplicateArgument))

	_, err = NewArgumentDescriptors(nil, &ArgumentDescriptor{ID: "a", Order: 1}, &ArgumentDescriptor{ID: "b", Order: 1})
	assert.True(t, terrors.HasCode(err, terrors.CodeDuplicateArgument))
}

func TestConvertValue(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		dataType DataType
		raw      string
		want     interface{}
		wantErr  bool
	}{
		{DataTypeText, "hello", "hello", false},
		{"", "hello", "hello", false},
		{DataTypeInteger, "42", int64(42), false},
		{DataTypeInteger, "4.2", nil, true},
		{DataTypeNumber, "4.5", 4.5, false},
		{DataTypeBoolean, "true", true, false},
		{DataTypeBoolean, "yes", nil, true},
		{DataTypeDate, "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{DataTypeDate, "tomorrow", nil, true},
		{DataTypeUUID, id.String(), id, false},
		{DataTypeUUID, "not-a-uuid", nil, true},
		{"blob", "x", nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.dataType)+"/"+tt.raw, func(t *testing.T) {
			got, err := ConvertValue(tt.dataType, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueCheckers(t *testing.T) {
	allowed := AllowedValues{Values: []string{"json", "text"}}
	assert.NoError(t, allowed.CheckValue("json", "json"))
	assert.Error(t, allowed.CheckValue("JSON", "JSON"))
	assert.NoError(t, AllowedValues{Values: []string{"json"}, CaseInsensitive: true}.CheckValue("JSON", "JSON"))

	pattern := MustPattern(`^[a-z]+$`)
	assert.NoError(t, pattern.CheckValue("abc", "abc"))
	assert.Error(t, pattern.CheckValue("ABC", "ABC"))

	_, err := NewPattern("[")
	assert.Error(t, err)

	r := Range{Min: 1, Max: 10}
	assert.NoError(t, r.CheckValue("5", int64(5)))
	assert.NoError(t, r.CheckValue("2.5", 2.5))
	assert.NoError(t, r.CheckValue("7", "7"))
	assert.Error(t, r.CheckValue("11", int64(11)))
	assert.Error(t, r.CheckValue("abc", "abc"))
}

func TestFlags(t *testing.T) {
	f := FlagProtected | FlagRequired
	assert.True(t, f.Has(FlagProtected))
	assert.True(t, f.Has(FlagRequired))
	assert.False(t, f.Has(FlagDisabled))
	assert.False(t, f.Has(FlagNone))
	assert.Equal(t, "protected|required", f.String())
	assert.Equal(t, "none", FlagNone.String())
}

func TestCommand_Lookup(t *testing.T) {
	name := &OptionDescriptor{ID: "name", Alias: "n"}
	cmd := NewCommand(&Descriptor{ID: "greet", Type: TypeNativeCommand}, text.CaseInsensitive)
	cmd.Options = append(cmd.Options, &Option{Descriptor: name, ID: "name", Raw: "bob", Value: "bob", ByAlias: true})
	cmd.Arguments = append(cmd.Arguments, &Argument{ID: "target", Raw: "x", Value: "x"})

	opt, ok := cmd.TryGetOption("N")
	require.True(t, ok)
	assert.Equal(t, "bob", opt.Value)
	assert.True(t, cmd.HasOption("name"))
	assert.False(t, cmd.HasOption("other"))

	arg, ok := cmd.TryGetArgument("target")
	require.True(t, ok)
	assert.Equal(t, "x", arg.Raw)
}

func TestCommandRoute(t *testing.T) {
	r := NewCommandRoute("cmd1", "pi math add 1 2")
	assert.Equal(t, "cmd1", r.ID())
	assert.Equal(t, "pi math add 1 2", r.Raw())

	generated := NewCommandRoute("", "x")
	_, err := uuid.Parse(generated.ID())
	assert.NoError(t, err)
}

func TestHelpOptions_IsHelp(t *testing.T) {
	help := DefaultHelpOptions()
	helpDesc := &OptionDescriptor{ID: "help", Alias: "h", DataType: DataTypeBoolean}

	cmd := NewCommand(&Descriptor{ID: "ping", Type: TypeNativeCommand}, nil)
	assert.False(t, help.IsHelp(cmd))

	cmd.Options = append(cmd.Options, &Option{Descriptor: helpDesc, ID: "help", Value: true, ByAlias: true})
	assert.True(t, help.IsHelp(cmd))

	help.Enabled = false
	assert.False(t, help.IsHelp(cmd))
}
