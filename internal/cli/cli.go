package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRun       Command = "run"
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandToggle    Command = "toggle"
	CommandStatus    Command = "status"
	CommandStats     Command = "stats"
	CommandSetDevice Command = "set-device"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:       {},
	CommandStart:     {},
	CommandStop:      {},
	CommandToggle:    {},
	CommandStatus:    {},
	CommandStats:     {},
	CommandSetDevice: {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// DeviceIndex is set for set-device; negative selects the default device.
	DeviceIndex *int
	ShowHelp    bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			if cmd == CommandSetDevice {
				i++
				if i >= len(args) {
					return Parsed{}, errors.New("set-device requires a device index")
				}
				index, err := strconv.Atoi(args[i])
				if err != nil {
					return Parsed{}, fmt.Errorf("invalid device index %q", args[i])
				}
				parsed.DeviceIndex = &index
			}

			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run            Run the dictation daemon (owns the control socket)
  start          Start a dictation session on the running daemon
  stop           Stop the active dictation session
  toggle         Start or stop depending on current state
  status         Print daemon state
  stats          Print pipeline statistics as JSON
  set-device N   Select capture device N (negative for default)
  devices        List capture devices
  doctor         Run configuration and environment checks
  version        Print version information
  help           Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voxd/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
