// Package state persists the lamp's last-known state between runs: the saved
// device identity and the most recently sent power and color values. The
// session core reads it to compute toggle targets and to carry color identity
// across brightness-only updates, and writes it after every successful send.
package state

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Lamp is the persisted key-value record. Pointer fields distinguish a value
// that was never set from false or zero: nil means unknown.
type Lamp struct {
	DeviceID   string `json:"deviceIdentity,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	Power      *bool  `json:"powerState,omitempty"`
	Hue        *int   `json:"hue,omitempty"`
	Sat        *int   `json:"sat,omitempty"`
	Val        *int   `json:"val,omitempty"`
}

// HSV returns the stored color if all three components are known. The three
// components always move together; a partial record reads as unknown.
func (l Lamp) HSV() (h, s, v int, ok bool) {
	if l.Hue == nil || l.Sat == nil || l.Val == nil {
		return 0, 0, 0, false
	}
	return *l.Hue, *l.Sat, *l.Val, true
}

// SetPower records a known power state.
func (l *Lamp) SetPower(on bool) {
	l.Power = &on
}

// SetHSV records a known color. All three components are written together.
func (l *Lamp) SetHSV(h, s, v int) {
	l.Hue, l.Sat, l.Val = &h, &s, &v
}

// Store is the persistence boundary consumed by the command surface.
type Store interface {
	Load() (Lamp, error)
	Save(Lamp) error
}

// FileStore keeps the record in a single JSON file.
type FileStore struct {
	path string
	lock sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored record. A missing file is not an error; it yields a
// record with every value unknown.
func (f *FileStore) Load() (Lamp, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Lamp{}, nil
		}
		return Lamp{}, err
	}
	defer file.Close()

	return Import(file)
}

// Save writes the record, creating the parent directory if needed.
func (f *FileStore) Save(lamp Lamp) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	return Export(file, lamp)
}

// Import reads a record previously written with Export.
func Import(r io.Reader) (Lamp, error) {
	var lamp Lamp
	if err := json.NewDecoder(r).Decode(&lamp); err != nil {
		return Lamp{}, err
	}
	return lamp, nil
}

// Export writes a serialized record to w.
func Export(w io.Writer, lamp Lamp) error {
	return json.NewEncoder(w).Encode(lamp)
}
