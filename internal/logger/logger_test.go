package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantLevel zerolog.Level
		wantErr   bool
	}{
		{name: "defaults", config: Config{}, wantLevel: zerolog.InfoLevel},
		{name: "debug console", config: Config{Level: "debug", Format: "console"}, wantLevel: zerolog.DebugLevel},
		{name: "warn stdout", config: Config{Level: "warn", Output: "stdout"}, wantLevel: zerolog.WarnLevel},
		{name: "bad level", config: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", config: Config{Format: "xml"}, wantErr: true},
		{name: "bad output", config: Config{Output: "/dev/null"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%+v) error = nil, want error", tt.config)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%+v) error = %v", tt.config, err)
			}
			if l.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestInit(t *testing.T) {
	if err := Init(Config{Level: "debug"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if GetLogger().GetLevel() != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", GetLogger().GetLevel())
	}
	if WithComponent("drules").GetLevel() == zerolog.Disabled {
		t.Error("component logger should not be disabled")
	}
}
