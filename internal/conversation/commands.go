// ABOUTME: Chat commands recognized in place of a user message

package conversation

import "strings"

// Command is a chat control word.
type Command string

const (
	CommandNone     Command = ""
	CommandExit     Command = "exit"
	CommandEscalate Command = "escalate"
	CommandHelp     Command = "help"
	CommandStatus   Command = "status"
)

// ParseCommand recognizes a whole-line command, case-insensitively.
// Anything else is CommandNone and should be processed as a turn.
func ParseCommand(input string) Command {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "bye":
		return CommandExit
	case "escalate":
		return CommandEscalate
	case "help":
		return CommandHelp
	case "status":
		return CommandStatus
	}
	return CommandNone
}

// HelpText lists the commands and tips for a good report.
const HelpText = `Available commands:
  help     - Show this help message
  status   - Show current session information
  escalate - Request human specialist assistance
  exit     - End the chat session

Tips for better assistance:
  - Be specific about your problem
  - Include error messages if any
  - Mention what you've already tried
  - Describe when the problem started
`
