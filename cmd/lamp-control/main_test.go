package main

import (
	"path/filepath"
	"testing"

	"github.com/halolight/lamp-command/pkg/state"
)

func TestOverrideStoreDoesNotPersistOverride(t *testing.T) {
	backing := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	paired := state.Lamp{DeviceID: "AA:BB:CC:DD:EE:FF", DeviceName: "Bedroom"}
	if err := backing.Save(paired); err != nil {
		t.Fatal(err)
	}

	store := overrideStore{Store: backing, id: "11:22:33:44:55:66"}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if loaded.DeviceID != "11:22:33:44:55:66" {
		t.Errorf("Load returned identity %q, expected the override", loaded.DeviceID)
	}

	// A save after a successful send carries the overridden record; the
	// file must keep the paired identity.
	loaded.SetPower(true)
	if err := store.Save(loaded); err != nil {
		t.Fatalf("Save failed: %s", err)
	}

	persisted, err := backing.Load()
	if err != nil {
		t.Fatalf("reload failed: %s", err)
	}
	if persisted.DeviceID != paired.DeviceID || persisted.DeviceName != paired.DeviceName {
		t.Errorf("persisted identity = %q %q, expected the saved pairing %q %q",
			persisted.DeviceID, persisted.DeviceName, paired.DeviceID, paired.DeviceName)
	}
	if persisted.Power == nil || !*persisted.Power {
		t.Error("power state was not persisted")
	}
}

func TestOverrideStoreWithoutOverride(t *testing.T) {
	backing := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	store := overrideStore{Store: backing}

	lamp := state.Lamp{DeviceID: "AA:BB:CC:DD:EE:FF"}
	lamp.SetHSV(120, 10, 100)
	if err := store.Save(lamp); err != nil {
		t.Fatalf("Save failed: %s", err)
	}

	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if persisted.DeviceID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("identity = %q", persisted.DeviceID)
	}
}
