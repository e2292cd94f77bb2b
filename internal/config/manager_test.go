package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"scheduler": {"capacity": 8, "workers": 2, "tick_interval": "100ms"},
		"tasks": [
			{"label": "ping", "schedule": "5s", "repeat": true}
		]
	}`)

	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Scheduler.Capacity != 8 || cfg.Scheduler.Workers != 2 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Label != "ping" || !cfg.Tasks[0].Repeat {
		t.Fatalf("tasks = %+v", cfg.Tasks)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.yaml", `
logging:
  level: info
scheduler:
  capacity: 4
  finish_pending_on_exit: true
storage:
  driver: file
  path: ./runs
tasks:
  - label: backup
    schedule: "02:30"
    synchronous: true
`)

	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scheduler.FinishPendingOnExit {
		t.Fatal("finish_pending_on_exit not decoded")
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Tasks) != 1 || !cfg.Tasks[0].Synchronous || cfg.Tasks[0].Schedule != "02:30" {
		t.Fatalf("tasks = %+v", cfg.Tasks)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.json", `{"scheduler": {"capasity": 8}}`)
	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.json", `{"scheduler": {}}{"extra": true}`)
	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received a different config")
		}
	case <-time.After(time.Second):
		t.Fatal("publish did not deliver")
	}

	// Full buffer: the stale item is replaced by the newest.
	stale, fresh := &Config{}, &Config{}
	m.publish(stale)
	m.publish(fresh)
	if got := <-ch; got != fresh {
		t.Fatal("slow subscriber did not get the latest config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 1h30m "); err != nil || d != 90*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for junk")
	}
	if d, err := ParseDurationOrDefault("x", "", 250*time.Millisecond); err != nil || d != 250*time.Millisecond {
		t.Fatalf("default: got %v, %v", d, err)
	}
}
