package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultRate != time.Second {
		t.Fatalf("DefaultRate = %v, want 1s", cfg.DefaultRate)
	}
	if len(cfg.PLCs) != 0 {
		t.Fatalf("expected no PLCs, got %d", len(cfg.PLCs))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Verbosity = 3
	cfg.AddPLC(PLCConfig{Name: "line1", Address: "10.0.0.5", Slot: 2, Period: 500 * time.Millisecond, Enabled: true})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Verbosity != 3 {
		t.Fatalf("Verbosity = %d, want 3", loaded.Verbosity)
	}
	if len(loaded.PLCs) != 1 || loaded.PLCs[0].Name != "line1" {
		t.Fatalf("PLCs = %+v", loaded.PLCs)
	}
	if loaded.PLCs[0].Period != 500*time.Millisecond {
		t.Fatalf("Period = %v, want 500ms", loaded.PLCs[0].Period)
	}
}

func TestLockUnlockAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()

	cfg.Lock()
	cfg.AddPLC(PLCConfig{Name: "line2", Address: "10.0.0.6"})
	if err := cfg.UnlockAndSave(path); err != nil {
		t.Fatalf("UnlockAndSave: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
}

func TestFindAddRemoveUpdatePLC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddPLC(PLCConfig{Name: "a", Address: "1.1.1.1"})
	cfg.AddPLC(PLCConfig{Name: "b", Address: "2.2.2.2"})

	if p := cfg.FindPLC("a"); p == nil || p.Address != "1.1.1.1" {
		t.Fatalf("FindPLC(a) = %+v", p)
	}
	if p := cfg.FindPLC("missing"); p != nil {
		t.Fatalf("expected nil for missing PLC, got %+v", p)
	}

	if !cfg.UpdatePLC("a", PLCConfig{Name: "a", Address: "9.9.9.9"}) {
		t.Fatal("UpdatePLC(a) should succeed")
	}
	if cfg.FindPLC("a").Address != "9.9.9.9" {
		t.Fatal("UpdatePLC did not take effect")
	}

	if !cfg.RemovePLC("b") {
		t.Fatal("RemovePLC(b) should succeed")
	}
	if cfg.FindPLC("b") != nil {
		t.Fatal("expected b to be removed")
	}
	if cfg.RemovePLC("b") {
		t.Fatal("removing an already-removed PLC should report false")
	}
}
