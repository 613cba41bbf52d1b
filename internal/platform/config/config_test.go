package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"ACQ_FIRESTORE_PROJECT_ID": "acq-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("unexpected write timeout: %s", cfg.Server.WriteTimeout)
	}
	if cfg.Events.ProjectID != "acq-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.OrderStatusTopic != defaultOrderStatusTopic {
		t.Errorf("expected default topic %s, got %s", defaultOrderStatusTopic, cfg.Events.OrderStatusTopic)
	}
	if cfg.Receiving.MaxBatchPieces != defaultMaxBatchPieces {
		t.Errorf("unexpected default batch size: %d", cfg.Receiving.MaxBatchPieces)
	}
	if cfg.Receiving.HistoryLimit != defaultHistoryLimit {
		t.Errorf("unexpected default history limit: %d", cfg.Receiving.HistoryLimit)
	}
	if cfg.Receiving.HistoryMaxLimit != defaultHistoryMaxLimit {
		t.Errorf("unexpected default history max limit: %d", cfg.Receiving.HistoryMaxLimit)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"ACQ_SERVER_PORT":                 "9090",
		"ACQ_SERVER_READ_TIMEOUT":         "20s",
		"ACQ_SERVER_WRITE_TIMEOUT":        "25s",
		"ACQ_SERVER_IDLE_TIMEOUT":         "2m",
		"ACQ_FIRESTORE_PROJECT_ID":        "acq-prod",
		"ACQ_FIRESTORE_EMULATOR_HOST":     "localhost:8200",
		"ACQ_EVENTS_PROJECT_ID":           "acq-events",
		"ACQ_EVENTS_ORDER_STATUS_TOPIC":   "status-cascade",
		"ACQ_RECEIVING_MAX_BATCH_PIECES":  "250",
		"ACQ_RECEIVING_HISTORY_LIMIT":     "10",
		"ACQ_RECEIVING_HISTORY_MAX_LIMIT": "50",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("unexpected emulator host %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Events.ProjectID != "acq-events" {
		t.Errorf("expected explicit events project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.OrderStatusTopic != "status-cascade" {
		t.Errorf("unexpected topic %s", cfg.Events.OrderStatusTopic)
	}
	if cfg.Receiving.MaxBatchPieces != 250 {
		t.Errorf("unexpected batch size %d", cfg.Receiving.MaxBatchPieces)
	}
	if cfg.Receiving.HistoryLimit != 10 || cfg.Receiving.HistoryMaxLimit != 50 {
		t.Errorf("unexpected history limits %d/%d", cfg.Receiving.HistoryLimit, cfg.Receiving.HistoryMaxLimit)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "ACQ_SERVER_PORT=7070\nACQ_FIRESTORE_PROJECT_ID=acq-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "acq-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadRejectsInvertedHistoryLimits(t *testing.T) {
	env := map[string]string{
		"ACQ_FIRESTORE_PROJECT_ID":        "acq-dev",
		"ACQ_RECEIVING_HISTORY_LIMIT":     "60",
		"ACQ_RECEIVING_HISTORY_MAX_LIMIT": "30",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for inverted history limits, got nil")
	}
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := validationErr.Fields(); len(fields) != 1 || fields[0] != "Receiving.HistoryLimit" {
		t.Errorf("unexpected invalid fields %v", fields)
	}
}
