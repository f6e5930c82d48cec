package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/baza/pkg/adapter/s3"
)

func TestCreateStorage_Filesystem(t *testing.T) {
	root := t.TempDir()
	cfg := &StorageConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"root": root},
	}

	st, err := CreateStorage(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem storage: %v", err)
	}
	if st == nil {
		t.Fatal("Expected non-nil storage")
	}

	for _, dir := range []string{"data", "tmp"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("Expected %s/ to be created under root, got err=%v", dir, err)
		}
	}
}

func TestCreateStorage_MissingRoot(t *testing.T) {
	cfg := &StorageConfig{Type: "filesystem", Filesystem: map[string]any{}}

	_, err := CreateStorage(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing root")
	}
	if !strings.Contains(err.Error(), "root is required") {
		t.Errorf("Expected 'root is required' error, got: %v", err)
	}
}

func TestCreateStorage_BadOptionType(t *testing.T) {
	cfg := &StorageConfig{Type: "filesystem", Filesystem: map[string]any{"root": []int{1}}}

	_, err := CreateStorage(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected decode error for non-string root")
	}
	if !strings.Contains(err.Error(), "failed to decode") {
		t.Errorf("Expected decode error, got: %v", err)
	}
}

func TestCreateStorage_UnknownType(t *testing.T) {
	_, err := CreateStorage(context.Background(), &StorageConfig{Type: "tape"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
	if !strings.Contains(err.Error(), "unknown storage type") {
		t.Errorf("Expected 'unknown storage type' error, got: %v", err)
	}
}

func TestCreateStorage_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &StorageConfig{Type: "filesystem", Filesystem: map[string]any{"root": t.TempDir()}}
	if _, err := CreateStorage(ctx, cfg, nil); err == nil {
		t.Fatal("Expected error with canceled context")
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()

	adapters, err := CreateAdapters(cfg, InitializeMetrics(cfg))
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 {
		t.Fatalf("Expected 1 adapter, got %d", len(adapters))
	}
	if adapters[0].Protocol() != "S3" || adapters[0].Port() != s3.DefaultPort {
		t.Errorf("Unexpected adapter %s on port %d", adapters[0].Protocol(), adapters[0].Port())
	}
}

func TestCreateAdapters_NoneEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.S3.Enabled = false

	if _, err := CreateAdapters(cfg, &MetricsResult{}); err == nil {
		t.Fatal("Expected error when no adapter is enabled")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.StorageMetrics != nil || result.S3Metrics != nil {
		t.Error("Expected nil collectors when disabled")
	}
}
