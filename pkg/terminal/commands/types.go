// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     commands
// Description: Command, option and argument descriptors, the descriptor store
//              and per-request command instances
// License:     MIT
// ============================================================================

// Package commands holds the static command model (descriptors and the store
// that owns them) and the runtime command instances produced per request.
package commands

import "strings"

// CommandType is the position of a command in the hierarchy
type CommandType int

const (
	// TypeRoot is the top of a command hierarchy
	TypeRoot CommandType = iota + 1
	// TypeGroup groups sub commands below a root or another group
	TypeGroup
	// TypeSubCommand is an executable leaf below a group or root
	TypeSubCommand
	// TypeNativeCommand is an executable standalone command
	TypeNativeCommand
)

// String returns the string representation of the command type
func (t CommandType) String() string {
	switch t {
	case TypeRoot:
		return "root"
	case TypeGroup:
		return "group"
	case TypeSubCommand:
		return "sub_command"
	case TypeNativeCommand:
		return "native_command"
	default:
		return "unknown"
	}
}

// IsLeaf reports whether the type terminates the hierarchy walk
func (t CommandType) IsLeaf() bool {
	return t == TypeSubCommand || t == TypeNativeCommand
}

// ParseCommandType parses the string form used in configuration files
func ParseCommandType(s string) (CommandType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "root":
		return TypeRoot, true
	case "group":
		return TypeGroup, true
	case "sub_command", "subcommand", "sub":
		return TypeSubCommand, true
	case "native_command", "native":
		return TypeNativeCommand, true
	default:
		return 0, false
	}
}

// Flags is a bitset of descriptor flags
type Flags uint8

// FlagNone is the empty flag set
const FlagNone Flags = 0

const (
	// FlagProtected requires an authorized route context
	FlagProtected Flags = 1 << iota
	// FlagObsolete marks descriptors kept only for compatibility
	FlagObsolete
	// FlagDisabled makes the descriptor unusable
	FlagDisabled
	// FlagRequired makes an option or argument mandatory
	FlagRequired
)

// Has reports whether all bits of f2 are set
func (f Flags) Has(f2 Flags) bool {
	return f2 != 0 && f&f2 == f2
}

// String lists the set flags separated by "|"
func (f Flags) String() string {
	if f == FlagNone {
		return "none"
	}
	var parts []string
	for _, named := range []struct {
		flag Flags
		name string
	}{
		{FlagProtected, "protected"},
		{FlagObsolete, "obsolete"},
		{FlagDisabled, "disabled"},
		{FlagRequired, "required"},
	} {
		if f.Has(named.flag) {
			parts = append(parts, named.name)
		}
	}
	return strings.Join(parts, "|")
}

// DataType is the logical type of an option or argument value
type DataType string

const (
	DataTypeText    DataType = "text"
	DataTypeInteger DataType = "integer"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
	DataTypeUUID    DataType = "uuid"
)

// Normalized returns the data type, defaulting an empty value to text
func (d DataType) Normalized() DataType {
	if d == "" {
		return DataTypeText
	}
	return d
}

// Valid reports whether d is a known data type
func (d DataType) Valid() bool {
	switch d.Normalized() {
	case DataTypeText, DataTypeInteger, DataTypeNumber, DataTypeBoolean, DataTypeDate, DataTypeUUID:
		return true
	}
	return false
}
