package main

import (
	"testing"

	"github.com/pthm-cable/laop/config"
)

func TestApplyFlagsMap(t *testing.T) {
	tests := []struct {
		flag     string
		wantName string
		wantFile string
	}{
		{"", "track", ""},
		{"box", "box", ""},
		{"maps/oval.yaml", "track", "maps/oval.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg := config.Default()
			applyFlags(cfg, "", 0, false, tt.flag, false)
			if cfg.Map.Name != tt.wantName || cfg.Map.File != tt.wantFile {
				t.Errorf("map = %q / %q", cfg.Map.Name, cfg.Map.File)
			}
		})
	}
}

func TestSelectSessions(t *testing.T) {
	cfg := config.Default()
	cfg.Training.Sessions = []config.SessionConfig{
		{Name: "ga", Algorithm: "genetic"},
		{Name: "rs", Algorithm: "random"},
		{Name: "ga2", Algorithm: "genetic"},
	}
	cfg.Derived.SessionNames = []string{"ga", "rs", "ga2"}

	if err := selectSessions(cfg, []string{"ga2", " ga"}); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Training.Sessions) != 2 || cfg.Training.Sessions[0].Name != "ga" || cfg.Training.Sessions[1].Name != "ga2" {
		t.Errorf("sessions = %+v", cfg.Training.Sessions)
	}

	if err := selectSessions(cfg, []string{"nope"}); err == nil {
		t.Error("unknown session accepted")
	}
}
