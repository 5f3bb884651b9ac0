// Package config loads kcamera settings from defaults, an optional YAML
// file, .env files and KCAMERA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wachiwi/kcamera/pkg/camera"
)

// Config is the full application configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Driver    string `mapstructure:"driver"` // "pattern" or "pipe"

	HTTP      HTTPConfig      `mapstructure:"http"`
	Clips     ClipsConfig     `mapstructure:"clips"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Camera    CameraConfig    `mapstructure:"camera"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type ClipsConfig struct {
	Dir       string        `mapstructure:"dir"`
	Retention time.Duration `mapstructure:"retention"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type ScheduleConfig struct {
	// Spec is a cron expression; empty disables scheduled recordings.
	Spec     string        `mapstructure:"spec"`
	Location string        `mapstructure:"location"`
	Duration time.Duration `mapstructure:"duration"`
}

type TriggerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Chip     string        `mapstructure:"chip"`
	Line     int           `mapstructure:"line"`
	Debounce time.Duration `mapstructure:"debounce"`
	Duration time.Duration `mapstructure:"duration"`
}

// CameraConfig mirrors camera.Params with human friendly durations.
type CameraConfig struct {
	Mode         string        `mapstructure:"mode"`
	Width        uint16        `mapstructure:"width"`
	Height       uint16        `mapstructure:"height"`
	Framerate    uint          `mapstructure:"framerate"`
	Brightness   uint          `mapstructure:"brightness"`
	Saturation   uint          `mapstructure:"saturation"`
	AutoShutter  bool          `mapstructure:"auto_shutter"`
	ShutterSpeed time.Duration `mapstructure:"shutter_speed"`
	AWB          bool          `mapstructure:"awb"`
	AWBRed       float64       `mapstructure:"awb_red"`
	AWBBlue      float64       `mapstructure:"awb_blue"`
	HFlip        bool          `mapstructure:"hflip"`
	VFlip        bool          `mapstructure:"vflip"`
	MaxLatency   time.Duration `mapstructure:"max_latency"`
	MemReserve   uint          `mapstructure:"mem_reserve"`
	StartShift   time.Duration `mapstructure:"start_shift"`
	Duration     time.Duration `mapstructure:"duration"`
}

// Params converts the camera section into session parameters.
func (c CameraConfig) Params() camera.Params {
	p := camera.Params{
		Mode:         c.Mode,
		Width:        c.Width,
		Height:       c.Height,
		Framerate:    c.Framerate,
		Brightness:   c.Brightness,
		Saturation:   c.Saturation,
		AutoShutter:  c.AutoShutter,
		ShutterSpeed: c.ShutterSpeed,
		AWB:          c.AWB,
		AWBRed:       c.AWBRed,
		AWBBlue:      c.AWBBlue,
		HFlip:        c.HFlip,
		VFlip:        c.VFlip,
		MaxLatency:   uint32(c.MaxLatency.Microseconds()),
		MemReserve:   c.MemReserve,
		StartShift:   c.StartShift.Microseconds(),
		Duration:     uint32(c.Duration.Microseconds()),
	}
	if p.ShutterSpeed == 0 {
		p.ShutterSpeed = camera.MaxShutterSpeed(p.Framerate)
	}
	return p
}

func setDefaults(v *viper.Viper) {
	d := camera.DefaultParams()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("driver", "pipe")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.user", "")
	v.SetDefault("http.password", "")

	v.SetDefault("clips.dir", filepath.Join(xdg.DataHome, "kcamera", "clips"))
	v.SetDefault("clips.retention", 7*24*time.Hour)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.insecure", true)

	v.SetDefault("schedule.spec", "")
	v.SetDefault("schedule.location", "Local")
	v.SetDefault("schedule.duration", 10*time.Second)

	v.SetDefault("trigger.enabled", false)
	v.SetDefault("trigger.chip", "gpiochip0")
	v.SetDefault("trigger.line", 17)
	v.SetDefault("trigger.debounce", 50*time.Millisecond)
	v.SetDefault("trigger.duration", 30*time.Second)

	v.SetDefault("camera.mode", d.Mode)
	v.SetDefault("camera.width", d.Width)
	v.SetDefault("camera.height", d.Height)
	v.SetDefault("camera.framerate", d.Framerate)
	v.SetDefault("camera.brightness", d.Brightness)
	v.SetDefault("camera.saturation", d.Saturation)
	v.SetDefault("camera.auto_shutter", d.AutoShutter)
	v.SetDefault("camera.shutter_speed", time.Duration(0))
	v.SetDefault("camera.awb", d.AWB)
	v.SetDefault("camera.awb_red", d.AWBRed)
	v.SetDefault("camera.awb_blue", d.AWBBlue)
	v.SetDefault("camera.hflip", false)
	v.SetDefault("camera.vflip", false)
	v.SetDefault("camera.max_latency", time.Duration(d.MaxLatency)*time.Microsecond)
	v.SetDefault("camera.mem_reserve", d.MemReserve)
	v.SetDefault("camera.start_shift", time.Duration(0))
	v.SetDefault("camera.duration", time.Duration(0))
}

// Options tune Load.
type Options struct {
	// File is an explicit config file. When empty the XDG config directory
	// and the working directory are searched for config.yaml.
	File string
	// EnvFiles are loaded with godotenv before the environment is read.
	// Missing files are ignored.
	EnvFiles []string
}

// Load builds the configuration.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.EnvFiles {
		// Existing environment variables win over .env entries.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KCAMERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "kcamera"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ConfigFile is the default config path in the XDG config directory.
func ConfigFile() (string, error) {
	return xdg.ConfigFile("kcamera/config.yaml")
}
