package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/config"
)

func TestNewSetsDebugLevelInLocalMode(t *testing.T) {
	New(&config.Config{Mode: config.ModeLocal})

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level in local mode, got %v", zerolog.GlobalLevel())
	}
}

func TestNewSetsInfoLevelInProductionMode(t *testing.T) {
	New(&config.Config{Mode: config.ModeProduction})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level in production mode, got %v", zerolog.GlobalLevel())
	}
}
