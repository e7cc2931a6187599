package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halolight/lamp-command/pkg/lamp"
	"github.com/halolight/lamp-command/pkg/protocol"
)

var (
	ErrUnknownCommand  = errors.New("unrecognized command")
	ErrCommandLineArgs = errors.New("invalid command line arguments")
)

type Argument struct {
	name string
	help string
}

type Handler func(ctx context.Context, env *environment, args map[string]string) error

type Command struct {
	help     string
	args     []Argument
	optional []Argument
	handler  Handler
}

// actionHandler adapts a lamp action into a Handler that prints the result
// message.
func actionHandler(action func(ctx context.Context, l *lamp.Lamp, args map[string]string) (lamp.Result, error)) Handler {
	return func(ctx context.Context, env *environment, args map[string]string) error {
		l, err := env.lamp()
		if err != nil {
			return err
		}
		result, err := action(ctx, l, args)
		if err != nil {
			return err
		}
		fmt.Println(result.Message)
		return nil
	}
}

func parseLevel(value string) (int, error) {
	level, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: LEVEL must be a number", ErrCommandLineArgs)
	}
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("%w: LEVEL must be in [0, 100]", ErrCommandLineArgs)
	}
	return level, nil
}

func parseChannel(name, value string) (int, error) {
	channel, err := strconv.Atoi(value)
	if err != nil || channel < 0 || channel > 255 {
		return 0, fmt.Errorf("%w: %s must be a number in [0, 255]", ErrCommandLineArgs, name)
	}
	return channel, nil
}

var commands = map[string]*Command{
	"on": {
		help: "Turn the lamp on",
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, _ map[string]string) (lamp.Result, error) {
			return l.PowerOn(ctx)
		}),
	},
	"off": {
		help: "Turn the lamp off",
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, _ map[string]string) (lamp.Result, error) {
			return l.PowerOff(ctx)
		}),
	},
	"toggle": {
		help: "Toggle the lamp's power state",
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, _ map[string]string) (lamp.Result, error) {
			return l.TogglePower(ctx)
		}),
	},
	"toggle-intensity": {
		help: "Toggle brightness between 50% and 100%",
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, _ map[string]string) (lamp.Result, error) {
			return l.ToggleIntensity(ctx)
		}),
	},
	"brightness": {
		help: "Set brightness",
		args: []Argument{
			{name: "LEVEL", help: "Brightness percentage in [0, 100]"},
		},
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, args map[string]string) (lamp.Result, error) {
			level, err := parseLevel(args["LEVEL"])
			if err != nil {
				return lamp.Result{}, err
			}
			return l.SetBrightness(ctx, level)
		}),
	},
	"color": {
		help: "Set one of the named preset colors",
		args: []Argument{
			{name: "NAME", help: "Preset name; run 'presets' for the list"},
		},
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, args map[string]string) (lamp.Result, error) {
			return l.SetColor(ctx, args["NAME"])
		}),
	},
	"rgb": {
		help: "Set an arbitrary RGB color",
		args: []Argument{
			{name: "RED", help: "Red channel in [0, 255]"},
			{name: "GREEN", help: "Green channel in [0, 255]"},
			{name: "BLUE", help: "Blue channel in [0, 255]"},
		},
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, args map[string]string) (lamp.Result, error) {
			r, err := parseChannel("RED", args["RED"])
			if err != nil {
				return lamp.Result{}, err
			}
			g, err := parseChannel("GREEN", args["GREEN"])
			if err != nil {
				return lamp.Result{}, err
			}
			b, err := parseChannel("BLUE", args["BLUE"])
			if err != nil {
				return lamp.Result{}, err
			}
			return l.SetRGB(ctx, r, g, b)
		}),
	},
	"verify": {
		help: "Check that the saved lamp is reachable without changing it",
		handler: actionHandler(func(ctx context.Context, l *lamp.Lamp, _ map[string]string) (lamp.Result, error) {
			return l.Verify(ctx)
		}),
	},
	"scan": {
		help: "Scan for nearby lamps",
		optional: []Argument{
			{name: "SECONDS", help: "How long to scan (default 10)"},
		},
		handler: scanHandler,
	},
	"pair": {
		help: "Save a lamp as the control target",
		args: []Argument{
			{name: "ID", help: "Device identity reported by 'scan'"},
		},
		optional: []Argument{
			{name: "NAME", help: "Friendly name to store alongside the identity"},
		},
		handler: pairHandler,
	},
	"status": {
		help:    "Show the session and saved lamp state",
		handler: statusHandler,
	},
	"presets": {
		help: "List the available color presets",
		handler: func(_ context.Context, _ *environment, _ map[string]string) error {
			for _, name := range protocol.PresetNames() {
				fmt.Println(name)
			}
			return nil
		},
	},
}

func scanHandler(ctx context.Context, env *environment, args map[string]string) error {
	duration := 10 * time.Second
	if value, ok := args["SECONDS"]; ok {
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("%w: SECONDS must be a positive number", ErrCommandLineArgs)
		}
		duration = time.Duration(seconds) * time.Second
	}

	sess, err := env.session()
	if err != nil {
		return err
	}
	scan, err := sess.StartScan(ctx)
	if err != nil {
		return err
	}
	defer scan.Stop()

	fmt.Println("Scanning... (live advertisements)")
	deadline := time.After(duration)
stream:
	for {
		select {
		case adv, ok := <-scan.Advertisements():
			if !ok {
				break stream
			}
			name := adv.LocalName
			if name == "" {
				name = "(no name)"
			}
			fmt.Printf("  %-24s %-20s %4d dBm\n", adv.ID, name, adv.RSSI)
		case <-deadline:
			break stream
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	devices := scan.Devices()
	scan.Stop()
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}
	fmt.Printf("\nDiscovered %d device(s), strongest signal first:\n", len(devices))
	for _, adv := range devices {
		name := adv.LocalName
		if name == "" {
			name = "(no name)"
		}
		fmt.Printf("  %-24s %-20s %4d dBm\n", adv.ID, name, adv.RSSI)
	}
	return nil
}

func pairHandler(ctx context.Context, env *environment, args map[string]string) error {
	store := env.config.OpenStore()
	saved, err := store.Load()
	if err != nil {
		return err
	}
	saved.DeviceID = args["ID"]
	saved.DeviceName = args["NAME"]
	if err := store.Save(saved); err != nil {
		return err
	}
	fmt.Printf("Saved lamp %s.\n", saved.DeviceID)

	sess, err := env.session()
	if err != nil {
		return err
	}
	if err := sess.VerifyPeripheral(ctx, saved.DeviceID); err != nil {
		writeErr("Warning: could not verify the lamp: %s", protocol.UserMessage(err))
		return nil
	}
	fmt.Println("The lamp is reachable.")
	return nil
}

func statusHandler(_ context.Context, env *environment, _ map[string]string) error {
	saved, err := env.store().Load()
	if err != nil {
		return err
	}
	if saved.DeviceID == "" {
		fmt.Println("Saved lamp:  (none)")
	} else {
		name := saved.DeviceName
		if name == "" {
			name = "(no name)"
		}
		fmt.Printf("Saved lamp:  %s %s\n", saved.DeviceID, name)
	}
	if saved.Power == nil {
		fmt.Println("Power:       unknown")
	} else if *saved.Power {
		fmt.Println("Power:       on")
	} else {
		fmt.Println("Power:       off")
	}
	if h, s, v, ok := saved.HSV(); ok {
		fmt.Printf("Color (HSV): %d %d %d\n", h, s, v)
	} else {
		fmt.Println("Color (HSV): unknown")
	}

	if env.sess != nil {
		status := env.sess.Status()
		fmt.Printf("Session:     %s (adapter %s)\n", status.State, status.AdapterState)
		fmt.Printf("Scanning:    %v\n", status.Scanning)
		if len(status.Pending) > 0 {
			fmt.Printf("Pending:     %s\n", strings.Join(status.Pending, ", "))
		}
	}
	return nil
}

func execute(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}

	var err error
	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, env, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	for _, arg := range c.optional {
		fmt.Printf(" [%s]", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	fmt.Printf("\n%s\n", c.help)
	if len(c.args)+len(c.optional) > 0 {
		fmt.Println("Arguments:")
	}
	format := fmt.Sprintf("  %%-%ds %%s\n", maxLength)
	for _, arg := range c.args {
		fmt.Printf(format, arg.name, arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf(format, arg.name, arg.help)
	}
}
