package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Hotkey != "F11" {
		t.Errorf("Expected Hotkey 'F11', got '%s'", cfg.Hotkey)
	}
	if cfg.OutputPath != "img.png" || cfg.ClipboardFormat != "png" || cfg.ShaderDir != "compiled_shaders" {
		t.Errorf("unexpected paths: %+v", cfg)
	}
	if cfg.CaptureTimeout != 3*time.Second || cfg.FrameTimeout != time.Millisecond {
		t.Errorf("unexpected timeouts: %v %v", cfg.CaptureTimeout, cfg.FrameTimeout)
	}
	if cfg.AccessLostRetries != 3 || cfg.Backend != BackendAuto {
		t.Errorf("unexpected retries/backend: %d %s", cfg.AccessLostRetries, cfg.Backend)
	}
	if cfg.EnableFileLogging || cfg.ReadbackDiagnostics || cfg.DebugDevice {
		t.Errorf("flags should default to off: %+v", cfg)
	}
	if cfg.ConfigFileUsed != "" {
		t.Errorf("no config file expected, got %s", cfg.ConfigFileUsed)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(KeyHotkey, "Ctrl+Shift+S")
	t.Setenv(KeyEnableFileLogging, "true")
	t.Setenv(KeyFrameTimeoutMS, "16")
	t.Setenv(KeyBackend, "Software")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Hotkey != "Ctrl+Shift+S" {
		t.Errorf("Expected Hotkey 'Ctrl+Shift+S', got '%s'", cfg.Hotkey)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true")
	}
	if cfg.FrameTimeout != 16*time.Millisecond {
		t.Errorf("FrameTimeout = %v", cfg.FrameTimeout)
	}
	if cfg.Backend != BackendSoftware {
		t.Errorf("Backend = %q", cfg.Backend)
	}
}

func TestLoadDotenvFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envFile := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envFile, []byte("OUTPUT_PATH=shots/out.png\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPathVar, envFile)
	// t.Setenv restores whatever godotenv leaves in the environment
	t.Setenv(KeyOutputPath, "")
	os.Unsetenv(KeyOutputPath)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputPath != "shots/out.png" {
		t.Errorf("OutputPath = %q", cfg.OutputPath)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "CAPTURE_TIMEOUT_MS: 500\nACCESS_LOST_RETRIES: 5\nCLIPBOARD_FORMAT: PNG\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigName+".yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CaptureTimeout != 500*time.Millisecond || cfg.AccessLostRetries != 5 || cfg.ClipboardFormat != "PNG" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.ConfigFileUsed == "" {
		t.Errorf("ConfigFileUsed not reported")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(KeyBackend, BackendD3D11)
	cfg, err := LoadWithOptions(LoadOptions{BackendOverride: "software", HotkeyOverride: "F12"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSoftware || cfg.Hotkey != "F12" {
		t.Errorf("overrides not applied: %s %s", cfg.Backend, cfg.Hotkey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{KeyBackend, "vulkan"},
		{KeyCaptureTimeoutMS, "0"},
		{KeyAccessLostRetries, "0"},
		{KeyFrameTimeoutMS, "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); !errors.Is(err, ErrInvalid) {
				t.Errorf("%s=%s: err = %v, want ErrInvalid", tt.key, tt.value, err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := LoadWithOptions(LoadOptions{ConfigFile: "does-not-exist.yaml"}); err == nil {
		t.Errorf("missing explicit config file accepted")
	}
}

func TestLoadUploadSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(KeyUploadBucket, " snips ")
	t.Setenv(KeyUploadPrefix, "/team/hdr/")
	t.Setenv(KeyUploadRegion, "eu-west-1")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := Upload{Bucket: "snips", Prefix: "team/hdr", Region: "eu-west-1"}
	if cfg.Upload != want {
		t.Errorf("Upload = %+v, want %+v", cfg.Upload, want)
	}
}

func TestReloadReplacesDotenvValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envFile := filepath.Join(dir, "reload.env")
	t.Setenv(EnvPathVar, envFile)
	t.Setenv(KeyHotkey, "")
	os.Unsetenv(KeyHotkey)

	if err := os.WriteFile(envFile, []byte("HOTKEY=F9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != "F9" || cfg.EnvFileUsed != envFile {
		t.Fatalf("first load: hotkey %q env %q", cfg.Hotkey, cfg.EnvFileUsed)
	}

	if err := os.WriteFile(envFile, []byte("HOTKEY=F10\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if cfg, _ = Load(); cfg.Hotkey != "F9" {
		t.Errorf("plain load replaced an exported value: %q", cfg.Hotkey)
	}
	cfg, err = LoadWithOptions(LoadOptions{Reload: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != "F10" {
		t.Errorf("reload hotkey = %q, want F10", cfg.Hotkey)
	}
	if files := cfg.Files(); len(files) != 1 || files[0] != envFile {
		t.Errorf("Files = %v", files)
	}
}

func TestYAMLRendersEffectiveConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"hotkey: F11", "capture_timeout: 3s", "backend: auto", "output_path: img.png"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("YAML missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(string(out), "upload:") {
		t.Errorf("empty upload section rendered:\n%s", out)
	}
}

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ConfigName+".yaml")
	other := filepath.Join(dir, "unrelated.txt")
	if err := os.WriteFile(file, []byte("HOTKEY: F11\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{file}, func() { changed <- struct{}{} })
	}()

	// the watcher registers asynchronously; keep writing until it notices
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case <-changed:
			seen = true
		case <-tick.C:
			_ = os.WriteFile(other, []byte("x"), 0o600)
			_ = os.WriteFile(file, []byte("HOTKEY: F12\n"), 0o600)
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch = %v, want context.Canceled", err)
	}
}

func TestWatchWithoutFiles(t *testing.T) {
	if err := Watch(context.Background(), nil, func() {}); err != nil {
		t.Errorf("Watch(nil) = %v", err)
	}
}
