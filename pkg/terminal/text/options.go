package text

import (
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// Options configures how raw command text is split into tokens
type Options struct {
	// OptionPrefix introduces an option by id, e.g. "--"
	OptionPrefix string

	// OptionAliasPrefix introduces an option by alias, e.g. "-"
	OptionAliasPrefix string

	// OptionValueSeparator separates an option id from its value
	OptionValueSeparator string

	// ValueDelimiter wraps values that contain separators or prefixes
	ValueDelimiter string

	// Separator separates commands, arguments and options
	Separator string
}

// DefaultOptions returns the default tokenizer options
func DefaultOptions() Options {
	return Options{
		OptionPrefix:         "--",
		OptionAliasPrefix:    "-",
		OptionValueSeparator: " ",
		ValueDelimiter:       `"`,
		Separator:            " ",
	}
}

// Validate checks the options for consistency
func (o Options) Validate() error {
	switch {
	case o.Separator == "":
		return terrors.New(terrors.CodeInvalidConfiguration, "the separator cannot be empty")
	case o.OptionPrefix == "":
		return terrors.New(terrors.CodeInvalidConfiguration, "the option prefix cannot be empty")
	case o.OptionAliasPrefix == "":
		return terrors.New(terrors.CodeInvalidConfiguration, "the option alias prefix cannot be empty")
	case o.OptionPrefix == o.OptionAliasPrefix:
		return terrors.New(terrors.CodeInvalidConfiguration,
			"the option prefix and alias prefix cannot be the same. prefix=%s", o.OptionPrefix)
	case o.OptionValueSeparator == "":
		return terrors.New(terrors.CodeInvalidConfiguration, "the option value separator cannot be empty")
	case o.ValueDelimiter != "" && o.ValueDelimiter == o.Separator:
		return terrors.New(terrors.CodeInvalidConfiguration, "the value delimiter cannot be the separator")
	}
	return nil
}
