package conversation

import "strings"

// Command is a recognized slash command.
type Command string

const (
	CommandInput  Command = "input"
	CommandStart  Command = "start"
	CommandHelp   Command = "help"
	CommandTotal  Command = "lihatbulanini"
	CommandCancel Command = "cancel"
)

var commandAliases = map[string]Command{
	"input":         CommandInput,
	"start":         CommandStart,
	"help":          CommandHelp,
	"lihatbulanini": CommandTotal,
	"month":         CommandTotal,
	"cancel":        CommandCancel,
}

// Commands lists the commands advertised to users, in menu order.
var Commands = []Command{CommandInput, CommandTotal, CommandCancel, CommandHelp}

// ParseCommand recognizes text that is exactly one known command, optionally
// addressed to a bot as /command@botname. Arguments disqualify the text.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || strings.ContainsAny(text, " \t\n") {
		return "", false
	}

	name := strings.TrimPrefix(text, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	cmd, ok := commandAliases[strings.ToLower(name)]
	return cmd, ok
}
