package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/term"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/cli"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/lamp"
	"github.com/halolight/lamp-command/pkg/protocol"
	"github.com/halolight/lamp-command/pkg/session"
	"github.com/halolight/lamp-command/pkg/state"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Run without a COMMAND on a terminal to start an interactive shell.
 * Run 'scan' and then 'pair' before issuing lamp commands.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

// environment is the lazily initialized runtime shared by command handlers.
type environment struct {
	config         cli.Config
	configPath     string
	deviceOverride string

	adapter ble.Adapter
	sess    *session.Session
	control *lamp.Lamp
}

// overrideStore injects a -device command line override over the saved
// identity without touching the persisted file.
type overrideStore struct {
	state.Store
	id string
}

func (o overrideStore) Load() (state.Lamp, error) {
	saved, err := o.Store.Load()
	if o.id != "" {
		saved.DeviceID = o.id
	}
	return saved, err
}

// Save persists power and color but keeps the file's own identity: the
// override is transient and must not replace the saved pairing.
func (o overrideStore) Save(lamp state.Lamp) error {
	if o.id != "" {
		saved, err := o.Store.Load()
		if err != nil {
			return err
		}
		lamp.DeviceID = saved.DeviceID
		lamp.DeviceName = saved.DeviceName
	}
	return o.Store.Save(lamp)
}

func (e *environment) store() state.Store {
	return overrideStore{Store: e.config.OpenStore(), id: e.deviceOverride}
}

// session initializes the BLE transport on first use so commands that never
// touch the radio work without one.
func (e *environment) session() (*session.Session, error) {
	if e.sess != nil {
		return e.sess, nil
	}
	adapter, err := e.config.NewAdapter()
	if err != nil {
		return nil, err
	}
	e.adapter = adapter
	e.sess = session.New(adapter, e.config.SessionOptions())
	return e.sess, nil
}

func (e *environment) lamp() (*lamp.Lamp, error) {
	if e.control != nil {
		return e.control, nil
	}
	sess, err := e.session()
	if err != nil {
		return nil, err
	}
	e.control = lamp.New(sess, e.store())
	return e.control, nil
}

func (e *environment) close() {
	if e.sess != nil {
		e.sess.Close()
	}
	if e.adapter != nil {
		if err := e.adapter.Close(); err != nil {
			log.Warning("failed to close adapter: %s", err)
		}
	}
}

func runCommand(env *environment, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := execute(ctx, env, args); err != nil {
		if errors.Is(err, protocol.ErrDeviceNotSelected) {
			writeErr("%s", protocol.UserMessage(err))
			writeErr("Run '%s scan' to list nearby devices, then '%s pair ID'.", os.Args[0], os.Args[0])
		} else {
			writeErr("%s", protocol.UserMessage(err))
		}
		return 1
	}
	return 0
}

func runInteractiveShell(env *environment, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(env, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		configPath     string
		deviceID       string
		commandTimeout time.Duration
	)
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.StringVar(&configPath, "config", cli.DefaultConfigPath(), "Load configuration from `file`")
	flag.StringVar(&deviceID, "device", "", "Override the saved lamp `identity`")
	flag.DurationVar(&commandTimeout, "command-timeout", 60*time.Second, "Set timeout for commands sent to the lamp.")
	flag.Parse()

	if !debug {
		if debugEnv, ok := os.LookupEnv("LAMP_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}

	config, err := cli.Load(configPath)
	if err != nil {
		writeErr("Error loading configuration: %s", err)
		return
	}

	env := &environment{
		config:         config,
		configPath:     configPath,
		deviceOverride: deviceID,
	}
	defer env.close()

	args := flag.Args()
	if len(args) > 0 {
		if args[0] == "help" {
			if len(args) == 1 {
				Usage()
				status = 0
				return
			}
			info, ok := commands[args[1]]
			if !ok {
				writeErr("Unrecognized command: %s", args[1])
				return
			}
			info.Usage(args[1])
			status = 0
			return
		}
		status = runCommand(env, args, commandTimeout)
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		Usage()
		return
	}
	status = runInteractiveShell(env, commandTimeout)
}
