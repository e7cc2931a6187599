package protocol

import "errors"

// Error exposes methods useful for categorizing failures reported by the
// session layer.
type Error interface {
	error

	// Terminal returns true if the condition cannot be fixed by retrying: the
	// user has to act outside the application (power on the adapter, grant a
	// permission, pair a lamp) before the operation can ever succeed.
	Terminal() bool
}

var (
	// ErrBluetoothUnavailable indicates the adapter is powered off or the host
	// has no usable Bluetooth hardware.
	ErrBluetoothUnavailable = NewError("Bluetooth is unavailable. Make sure the adapter is powered on.", true)
	// ErrBluetoothUnauthorized indicates the user denied the application
	// permission to use Bluetooth.
	ErrBluetoothUnauthorized = NewError("Bluetooth permission was denied. Grant access in your system settings.", true)
	// ErrDeviceNotSelected indicates no lamp has been paired yet.
	ErrDeviceNotSelected = NewError("No lamp selected. Scan for devices and pair one first.", true)
	// ErrDeviceNotFound indicates the saved lamp is not currently reachable.
	ErrDeviceNotFound = NewError("The lamp could not be found. Make sure it is plugged in and within range.", false)
	// ErrConnectionFailed indicates the transport reported a failed connection
	// attempt.
	ErrConnectionFailed = NewError("Could not connect to the lamp.", false)
	// ErrServiceNotFound indicates the connected peripheral does not expose
	// the expected control service.
	ErrServiceNotFound = NewError("The lamp does not expose the expected control service.", false)
	// ErrCharacteristicNotFound indicates the control characteristic is
	// missing or not writable.
	ErrCharacteristicNotFound = NewError("The lamp does not expose a writable control characteristic.", false)
	// ErrTimeout indicates a bounded step exceeded its deadline.
	ErrTimeout = NewError("The lamp did not respond in time.", false)
	// ErrSuperseded indicates a pending operation was displaced by a newer one
	// of the same kind. It is never shown to end users as a distinct message;
	// the superseded caller fails as if cancelled.
	ErrSuperseded = NewError("The operation was interrupted by a newer request.", false)
)

// CommandError is the concrete error type behind the package's sentinel
// values.
type CommandError struct {
	Err        error
	IsTerminal bool
}

func NewError(message string, terminal bool) error {
	return &CommandError{Err: errors.New(message), IsTerminal: terminal}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Terminal() bool {
	return e.IsTerminal
}

// Terminal returns true if err indicates a condition the user must resolve
// externally before retrying.
func Terminal(err error) bool {
	var cmdErr Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Terminal()
	}
	return false
}

// UserMessage maps err to its fixed human-readable message. Collaborators
// (the control panel and the voice-shortcut layer) display or speak the
// returned string verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Err.Error()
	}
	return err.Error()
}
