package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPathVar names an alternative .env file when none sits next to the
	// executable.
	EnvPathVar = "HDR_SNIP_ENV"
	// ConfigName is the optional YAML file looked up next to the executable
	// and in the working directory.
	ConfigName = "hdr-snip"

	BackendAuto     = "auto"
	BackendD3D11    = "d3d11"
	BackendSoftware = "software"
)

// Keys, also the environment variable names.
const (
	KeyHotkey              = "HOTKEY"
	KeyEnableFileLogging   = "ENABLE_FILE_LOGGING"
	KeyOutputPath          = "OUTPUT_PATH"
	KeyClipboardFormat     = "CLIPBOARD_FORMAT"
	KeyShaderDir           = "SHADER_DIR"
	KeyCaptureTimeoutMS    = "CAPTURE_TIMEOUT_MS"
	KeyFrameTimeoutMS      = "FRAME_TIMEOUT_MS"
	KeyAccessLostRetries   = "ACCESS_LOST_RETRIES"
	KeyBackend             = "BACKEND"
	KeyReadbackDiagnostics = "READBACK_DIAGNOSTICS"
	KeyDebugDevice         = "HDR_SNIP_DEBUG_DEVICE"
	KeyUploadBucket        = "UPLOAD_S3_BUCKET"
	KeyUploadPrefix        = "UPLOAD_S3_PREFIX"
	KeyUploadRegion        = "UPLOAD_S3_REGION"
)

var ErrInvalid = errors.New("config: invalid value")

type LoadOptions struct {
	// ConfigFile replaces the YAML lookup.
	ConfigFile      string
	BackendOverride string
	HotkeyOverride  string
	// Reload lets .env values replace variables an earlier load exported.
	Reload bool
}

type Config struct {
	Hotkey              string        `yaml:"hotkey"`
	EnableFileLogging   bool          `yaml:"enable_file_logging"`
	OutputPath          string        `yaml:"output_path"`
	ClipboardFormat     string        `yaml:"clipboard_format"`
	ShaderDir           string        `yaml:"shader_dir"`
	CaptureTimeout      time.Duration `yaml:"capture_timeout"`
	FrameTimeout        time.Duration `yaml:"frame_timeout"`
	AccessLostRetries   int           `yaml:"access_lost_retries"`
	Backend             string        `yaml:"backend"`
	ReadbackDiagnostics bool          `yaml:"readback_diagnostics"`
	DebugDevice         bool          `yaml:"debug_device"`
	Upload              Upload        `yaml:"upload,omitempty"`
	// ConfigFileUsed is empty when no YAML file was read.
	ConfigFileUsed string `yaml:"config_file,omitempty"`
	// EnvFileUsed is empty when no .env file was merged.
	EnvFileUsed string `yaml:"env_file,omitempty"`
}

// Upload is the optional S3 destination for exports. An empty Bucket
// disables uploading.
type Upload struct {
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order, highest first:
	// 1) LoadOptions overrides
	// 2) process environment, after .env next to the executable (or
	//    HDR_SNIP_ENV) has been merged into it
	// 3) the YAML file
	// 4) defaults
	envPath := resolveEnvPath()
	if envPath != "" {
		load := godotenv.Load
		if opts.Reload {
			load = godotenv.Overload
		}
		if err := load(envPath); err != nil {
			envPath = ""
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		if dir := execDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Hotkey:              strings.TrimSpace(v.GetString(KeyHotkey)),
		EnableFileLogging:   v.GetBool(KeyEnableFileLogging),
		OutputPath:          v.GetString(KeyOutputPath),
		ClipboardFormat:     strings.TrimSpace(v.GetString(KeyClipboardFormat)),
		ShaderDir:           v.GetString(KeyShaderDir),
		CaptureTimeout:      time.Duration(v.GetInt(KeyCaptureTimeoutMS)) * time.Millisecond,
		FrameTimeout:        time.Duration(v.GetInt(KeyFrameTimeoutMS)) * time.Millisecond,
		AccessLostRetries:   v.GetInt(KeyAccessLostRetries),
		Backend:             strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		ReadbackDiagnostics: v.GetBool(KeyReadbackDiagnostics),
		DebugDevice:         v.GetBool(KeyDebugDevice),
		Upload: Upload{
			Bucket: strings.TrimSpace(v.GetString(KeyUploadBucket)),
			Prefix: strings.Trim(strings.TrimSpace(v.GetString(KeyUploadPrefix)), "/"),
			Region: strings.TrimSpace(v.GetString(KeyUploadRegion)),
		},
		ConfigFileUsed: v.ConfigFileUsed(),
		EnvFileUsed:    envPath,
	}
	if o := strings.TrimSpace(opts.HotkeyOverride); o != "" {
		cfg.Hotkey = o
	}
	if o := strings.TrimSpace(opts.BackendOverride); o != "" {
		cfg.Backend = strings.ToLower(o)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyHotkey, "F11")
	v.SetDefault(KeyEnableFileLogging, false)
	v.SetDefault(KeyOutputPath, "img.png")
	v.SetDefault(KeyClipboardFormat, "png")
	v.SetDefault(KeyShaderDir, "compiled_shaders")
	v.SetDefault(KeyCaptureTimeoutMS, 3000)
	v.SetDefault(KeyFrameTimeoutMS, 1)
	v.SetDefault(KeyAccessLostRetries, 3)
	v.SetDefault(KeyBackend, BackendAuto)
	v.SetDefault(KeyReadbackDiagnostics, false)
	v.SetDefault(KeyDebugDevice, false)
	v.SetDefault(KeyUploadBucket, "")
	v.SetDefault(KeyUploadPrefix, "")
	v.SetDefault(KeyUploadRegion, "")
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendAuto, BackendD3D11, BackendSoftware:
	default:
		return fmt.Errorf("%w: %s=%q (want auto, d3d11 or software)", ErrInvalid, KeyBackend, c.Backend)
	}
	if c.Hotkey == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyHotkey)
	}
	if c.ClipboardFormat == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyClipboardFormat)
	}
	if c.CaptureTimeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyCaptureTimeoutMS)
	}
	if c.FrameTimeout < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyFrameTimeoutMS)
	}
	if c.AccessLostRetries < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalid, KeyAccessLostRetries)
	}
	return nil
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(execPath)
}

func resolveEnvPath() string {
	if dir := execDir(); dir != "" {
		exeEnv := filepath.Join(dir, ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
