package control

import "fmt"

// Command is the closed set of controller operations. Parsing a token into a
// Command is separate from executing it.
type Command int

const (
	Status Command = iota
	Start
	Stop
	Restart
)

func (c Command) String() string {
	switch c {
	case Status:
		return "status"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Restart:
		return "restart"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps a CLI token to a Command.
func ParseCommand(token string) (Command, error) {
	switch token {
	case "status", "":
		return Status, nil
	case "start":
		return Start, nil
	case "stop":
		return Stop, nil
	case "restart":
		return Restart, nil
	}
	return Status, fmt.Errorf("control: unknown command %q (expected status, start, stop or restart)", token)
}
