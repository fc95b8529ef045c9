package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweeney/propvalve/internal/output"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valve.json")
	f := NewFile(path)

	cfg, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !Equal(cfg, Default()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}

	again, err := f.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !Equal(again, cfg) {
		t.Error("reloaded config differs from defaults")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Version != Version {
		t.Errorf("Version: got %d, want %d", cfg.Version, Version)
	}
	if cfg.Dual.Acc != output.DefaultAcc || cfg.Dual.Solenoid[1].MaxMA != output.DefaultSolenoidMaxMA {
		t.Errorf("dual defaults not applied: %+v", cfg.Dual)
	}
	if cfg.Prop.Mode != output.PropNormal {
		t.Errorf("Prop.Mode: got %q", cfg.Prop.Mode)
	}
	if cfg.Ref.Mode != output.RefRel || cfg.Ref.Abs.PosMax != output.DefaultRefAbsPosMax {
		t.Errorf("ref defaults not applied: %+v", cfg.Ref)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "valve.json"))

	cfg := Default()
	cfg.Dual.Invert = true
	cfg.Dual.Solenoid[0].MaxMA = 1600
	cfg.Dual.Solenoid[1].CurrentI = 3
	cfg.Solenoid.CurrentP = 35
	cfg.Prop.Mode = output.OnOffToggle
	cfg.Prop.ToggleLimitMsNeg = 3000
	cfg.Ref.Mode = output.RefAbs

	if err := f.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !Equal(got, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valve.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"prop":{"mode":"ONOFF_NORMAL"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFile(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prop.Mode != output.OnOffNormal {
		t.Errorf("Prop.Mode: got %q, want ONOFF_NORMAL", cfg.Prop.Mode)
	}
	if cfg.Prop.ToggleThreshold != output.DefaultToggleThreshold {
		t.Errorf("ToggleThreshold: got %d, want default", cfg.Prop.ToggleThreshold)
	}
	if cfg.Ref.Rel.PosMin != output.DefaultRefRelPosMin {
		t.Errorf("Ref.Rel.PosMin: got %d, want default", cfg.Ref.Rel.PosMin)
	}
	if cfg.Solenoid.CurrentP != output.DefaultSolenoidCurrentP {
		t.Errorf("Solenoid.CurrentP: got %d, want default", cfg.Solenoid.CurrentP)
	}
}

func TestLoadPartialRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valve.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"solenoid":{"max_ma":1500}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFile(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("rewritten file: %v", err)
	}
	if !Equal(&onDisk, cfg) {
		t.Errorf("file not rewritten with defaults:\n%s", data)
	}
	if onDisk.Solenoid.MaxMA != 1500 {
		t.Errorf("Solenoid.MaxMA: got %d, want 1500", onDisk.Solenoid.MaxMA)
	}
	if onDisk.Solenoid.CurrentP != output.DefaultSolenoidCurrentP {
		t.Errorf("Solenoid.CurrentP: got %d, want default", onDisk.Solenoid.CurrentP)
	}
}

func TestLoadCompleteLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valve.json")
	cfg := Default()
	cfg.Prop.Acc = 80
	// compact encoding differs from what Save writes
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFile(path).Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("complete file was rewritten:\n%s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		is      error
		substr  string
	}{
		{"malformed", `{"version":`, nil, "parse"},
		{"newer version", `{"version":7}`, ErrVersion, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "valve.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewFile(path).Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error %v is not %v", err, tt.is)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not mention %q", err, tt.substr)
			}
		})
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "valve.json"))
	if err := f.Save(Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "valve.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}

func TestSaveToMissingDirectory(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing", "valve.json"))
	if err := f.Save(Default()); err == nil {
		t.Error("expected error saving into a missing directory")
	}
}
