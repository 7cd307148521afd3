package console

import (
	"github.com/chzyer/readline"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
)

// NewReadline creates a line editor with history and completion of the
// command names in store
func NewReadline(prompt, historyFile string, store commands.Store) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          NewStyles(readline.Stdout).Prompt.Render(prompt),
		HistoryFile:     historyFile,
		AutoComplete:    Completer(store),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Completer completes top level commands and their children
func Completer(store commands.Store) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, d := range store.All() {
		if d.Type == commands.TypeRoot || (d.Type == commands.TypeNativeCommand && len(d.OwnerIDs) == 0) {
			items = append(items, completerItem(store, d))
		}
	}
	items = append(items, readline.PcItem("exit"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}

func completerItem(store commands.Store, d *commands.Descriptor) readline.PrefixCompleterInterface {
	var children []readline.PrefixCompleterInterface
	for _, child := range store.Children(d.ID) {
		children = append(children, completerItem(store, child))
	}
	return readline.PcItem(d.ID, children...)
}
