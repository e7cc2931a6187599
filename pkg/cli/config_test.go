package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halolight/lamp-command/pkg/connector/ble"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if cfg.ServiceUUID != ble.LampServiceUUID || cfg.CharacteristicUUID != ble.LampCharacteristicUUID {
		t.Errorf("default endpoint = %s / %s", cfg.ServiceUUID, cfg.CharacteristicUUID)
	}
	if cfg.StepTimeoutSeconds != 12 || cfg.WriteRepetitions != 3 || cfg.WriteSpacingMS != 500 {
		t.Errorf("default timings = %d/%d/%d, expected 12/3/500",
			cfg.StepTimeoutSeconds, cfg.WriteRepetitions, cfg.WriteSpacingMS)
	}
	if cfg.Backend != defaultBackend {
		t.Errorf("default backend = %q, expected %q", cfg.Backend, defaultBackend)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "backend: tinygo\nwrite_repetitions: 5\nservice_uuid: 0000aaaa-0000-1000-8000-00805f9b34fb\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if cfg.Backend != BackendTinygo || cfg.WriteRepetitions != 5 {
		t.Errorf("overridden fields = %q/%d", cfg.Backend, cfg.WriteRepetitions)
	}
	if cfg.ServiceUUID != "0000aaaa-0000-1000-8000-00805f9b34fb" {
		t.Errorf("service UUID = %q", cfg.ServiceUUID)
	}
	// Fields absent from the file keep their defaults.
	if cfg.StepTimeoutSeconds != 12 || cfg.WriteSpacingMS != 500 {
		t.Errorf("untouched fields = %d/%d, expected 12/500", cfg.StepTimeoutSeconds, cfg.WriteSpacingMS)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config loaded without error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := Default()
	original.Backend = BackendGoble
	original.AdapterID = "hci1"
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %s", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if loaded != original {
		t.Errorf("round trip changed the config:\n  saved:  %+v\n  loaded: %+v", original, loaded)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.StepTimeoutSeconds = 2
	cfg.WriteSpacingMS = 50

	opts := cfg.SessionOptions()
	if opts.StepTimeout != 2*time.Second {
		t.Errorf("StepTimeout = %s", opts.StepTimeout)
	}
	if opts.WriteSpacing != 50*time.Millisecond {
		t.Errorf("WriteSpacing = %s", opts.WriteSpacing)
	}
	if opts.ServiceUUID != cfg.ServiceUUID || opts.CharacteristicUUID != cfg.CharacteristicUUID {
		t.Error("endpoint UUIDs not carried into session options")
	}
	if opts.WriteRepetitions != cfg.WriteRepetitions {
		t.Errorf("WriteRepetitions = %d", opts.WriteRepetitions)
	}
}

func TestNewAdapterRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend = "classic-serial"
	if _, err := cfg.NewAdapter(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestDefaultConfigPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(ConfigPathEnv, "/tmp/elsewhere.yaml")
	if got := DefaultConfigPath(); got != "/tmp/elsewhere.yaml" {
		t.Errorf("DefaultConfigPath = %q", got)
	}
}
