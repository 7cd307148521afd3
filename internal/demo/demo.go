// Package demo is a small command set used by the mdwterm binary and the
// integration tests: a pi root with status and math commands plus a few
// native commands.
package demo

import (
	"context"
	"strings"
	"time"

	"github.com/msto63/mdwterm/pkg/core/version"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// Runner names bound by the descriptors
const (
	RunnerStatus = "pi.status"
	RunnerAdd    = "math.add"
	RunnerDivide = "math.divide"
	RunnerEcho   = "echo"
	RunnerSleep  = "sleep"
	RunnerWhoAmI = "whoami"
)

// Descriptors returns the demo command descriptors
func Descriptors(cmp text.TextComparer) ([]*commands.Descriptor, error) {
	integers, err := commands.NewArgumentDescriptors(cmp,
		&commands.ArgumentDescriptor{ID: "a", Order: 1, DataType: commands.DataTypeInteger, Description: "first addend", Flags: commands.FlagRequired},
		&commands.ArgumentDescriptor{ID: "b", Order: 2, DataType: commands.DataTypeInteger, Description: "second addend", Flags: commands.FlagRequired},
	)
	if err != nil {
		return nil, err
	}
	numbers, err := commands.NewArgumentDescriptors(cmp,
		&commands.ArgumentDescriptor{ID: "dividend", Order: 1, DataType: commands.DataTypeNumber, Flags: commands.FlagRequired},
		&commands.ArgumentDescriptor{ID: "divisor", Order: 2, DataType: commands.DataTypeNumber, Flags: commands.FlagRequired},
	)
	if err != nil {
		return nil, err
	}
	echoArgs, err := commands.NewArgumentDescriptors(cmp,
		&commands.ArgumentDescriptor{ID: "text", Order: 1, DataType: commands.DataTypeText, Description: "text to print", Flags: commands.FlagRequired},
	)
	if err != nil {
		return nil, err
	}
	echoOpts, err := commands.NewOptionDescriptors(cmp,
		&commands.OptionDescriptor{ID: "upper", Alias: "u", DataType: commands.DataTypeBoolean, Description: "print in upper case"},
		&commands.OptionDescriptor{ID: "repeat", Alias: "r", DataType: commands.DataTypeInteger, Description: "number of copies",
			ValueCheckers: []commands.ValueChecker{commands.Range{Min: 1, Max: 10}}},
	)
	if err != nil {
		return nil, err
	}
	sleepArgs, err := commands.NewArgumentDescriptors(cmp,
		&commands.ArgumentDescriptor{ID: "ms", Order: 1, DataType: commands.DataTypeInteger, Description: "milliseconds", Flags: commands.FlagRequired},
	)
	if err != nil {
		return nil, err
	}

	return []*commands.Descriptor{
		{ID: "pi", Name: "Platform", Description: "Platform information", Type: commands.TypeRoot},
		{ID: "status", Description: "Show the router status", Type: commands.TypeSubCommand, OwnerIDs: []string{"pi"}, Runner: RunnerStatus},
		{ID: "math", Description: "Arithmetic", Type: commands.TypeGroup, OwnerIDs: []string{"pi"}},
		{ID: "add", Description: "Add two integers", Type: commands.TypeSubCommand, OwnerIDs: []string{"math"}, Arguments: integers, Runner: RunnerAdd},
		{ID: "divide", Description: "Divide two numbers", Type: commands.TypeSubCommand, OwnerIDs: []string{"math"}, Arguments: numbers, Runner: RunnerDivide},
		{ID: "echo", Description: "Print text", Type: commands.TypeNativeCommand, Arguments: echoArgs, Options: echoOpts, Runner: RunnerEcho},
		{ID: "sleep", Description: "Wait, honoring cancellation", Type: commands.TypeNativeCommand, Arguments: sleepArgs, Runner: RunnerSleep},
		{ID: "whoami", Description: "Show the calling transport", Type: commands.TypeNativeCommand, Flags: commands.FlagProtected, Runner: RunnerWhoAmI},
	}, nil
}

// NewStore builds an immutable store of the demo commands
func NewStore(cmp text.TextComparer) (*commands.ImmutableStore, error) {
	descriptors, err := Descriptors(cmp)
	if err != nil {
		return nil, err
	}
	return commands.NewImmutableStore(cmp, descriptors...)
}

// Register binds the demo runners. store is reported by pi status.
func Register(reg *runtime.Registry, store commands.Store) error {
	started := time.Now()
	runners := map[string]runtime.Runner{
		RunnerStatus: runtime.RunnerFunc(func(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
			return &runtime.RunResult{Value: map[string]interface{}{
				"version":  version.Framework,
				"uptime":   time.Since(started).Round(time.Second).String(),
				"commands": len(store.All()),
			}}, nil
		}),
		RunnerAdd: runtime.RunnerFunc(func(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
			a, err := integer(c, "a")
			if err != nil {
				return nil, err
			}
			b, err := integer(c, "b")
			if err != nil {
				return nil, err
			}
			return &runtime.RunResult{Value: a + b}, nil
		}),
		RunnerDivide: runtime.RunnerFunc(func(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
			a, err := number(c, "dividend")
			if err != nil {
				return nil, err
			}
			b, err := number(c, "divisor")
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, terrors.New(terrors.CodeInvalidArgument, "the divisor cannot be zero")
			}
			return &runtime.RunResult{Value: a / b}, nil
		}),
		RunnerEcho:   runtime.RunnerFunc(echo),
		RunnerSleep:  runtime.RunnerFunc(sleep),
		RunnerWhoAmI: runtime.RunnerFunc(whoami),
	}
	for name, r := range runners {
		if err := reg.RegisterRunner(name, r); err != nil {
			return err
		}
	}
	return nil
}

// License returns an unlimited license for local use
func License() *licensing.License {
	return &licensing.License{
		ID:    "demo",
		Plan:  "demo",
		Usage: "local",
		Claims: licensing.Claims{
			TenantID: "local",
			Subject:  "demo",
			Issuer:   "mdwterm",
			IssuedAt: time.Now(),
		},
	}
}

func echo(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
	arg, ok := c.Command().TryGetArgument("text")
	if !ok {
		return nil, terrors.New(terrors.CodeMissingArgument, "the text argument is required")
	}
	out := arg.Raw
	if opt, ok := c.Command().TryGetOption("upper"); ok && truthy(opt.Value) {
		out = strings.ToUpper(out)
	}
	if _, ok := c.Command().TryGetOption("repeat"); ok {
		n, err := integerOption(c, "repeat")
		if err != nil {
			return nil, err
		}
		out = strings.TrimSpace(strings.Repeat(out+" ", int(n)))
	}
	return &runtime.RunResult{Value: out}, nil
}

func sleep(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
	ms, err := integer(c, "ms")
	if err != nil {
		return nil, err
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, terrors.FromContext(ctx.Err())
	case <-t.C:
		return &runtime.RunResult{Value: "slept"}, nil
	}
}

func whoami(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
	result := map[string]interface{}{"transport": "unknown"}
	for _, key := range []string{"transport", "remote_addr"} {
		if v, ok := c.Properties[key]; ok {
			result[key] = v
		}
	}
	if c.License != nil {
		result["tenant"] = c.License.Claims.TenantID
	}
	return &runtime.RunResult{Value: result}, nil
}

// integer reads an integer argument whether or not strict typing converted it
func integer(c *runtime.Context, id string) (int64, error) {
	arg, ok := c.Command().TryGetArgument(id)
	if !ok {
		return 0, terrors.New(terrors.CodeMissingArgument, "the argument is required. argument=%s", id)
	}
	v, err := commands.ConvertValue(commands.DataTypeInteger, arg.Raw)
	if err != nil {
		return 0, terrors.Wrap(err, terrors.CodeInvalidArgument, "the argument is not an integer. argument=%s", id)
	}
	return v.(int64), nil
}

func integerOption(c *runtime.Context, id string) (int64, error) {
	opt, _ := c.Command().TryGetOption(id)
	v, err := commands.ConvertValue(commands.DataTypeInteger, opt.Raw)
	if err != nil {
		return 0, terrors.Wrap(err, terrors.CodeInvalidOption, "the option is not an integer. option=%s", id)
	}
	return v.(int64), nil
}

func number(c *runtime.Context, id string) (float64, error) {
	arg, ok := c.Command().TryGetArgument(id)
	if !ok {
		return 0, terrors.New(terrors.CodeMissingArgument, "the argument is required. argument=%s", id)
	}
	v, err := commands.ConvertValue(commands.DataTypeNumber, arg.Raw)
	if err != nil {
		return 0, terrors.Wrap(err, terrors.CodeInvalidArgument, "the argument is not a number. argument=%s", id)
	}
	return v.(float64), nil
}

func truthy(v interface{}) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
