package camera

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMode = errors.New("unknown camera mode")

// Mode is a named sensor configuration with its supported framerate range.
type Mode struct {
	Name   string
	Width  uint16
	Height uint16
	MinFPS uint
	MaxFPS uint
}

var modes = []Mode{
	{Name: "320x240x10", Width: 320, Height: 240, MinFPS: 4, MaxFPS: 90},
	{Name: "640x480x10", Width: 640, Height: 480, MinFPS: 4, MaxFPS: 90},
	{Name: "1280x960x10", Width: 1280, Height: 960, MinFPS: 4, MaxFPS: 90},
}

const DefaultMode = "640x480x10"

// Modes lists the supported modes.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// LookupMode finds a mode by name.
func LookupMode(name string) (Mode, error) {
	for _, m := range modes {
		if m.Name == name {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, name)
}

// Params is the full set of user-adjustable camera settings.
type Params struct {
	Width     uint16 `json:"width" mapstructure:"width"`
	Height    uint16 `json:"height" mapstructure:"height"`
	Framerate uint   `json:"framerate" mapstructure:"framerate"`
	Mode      string `json:"mode" mapstructure:"mode"`

	Brightness   uint          `json:"brightness" mapstructure:"brightness"` // 0..100, 50 is neutral
	AutoShutter  bool          `json:"autoShutter" mapstructure:"auto_shutter"`
	ShutterSpeed time.Duration `json:"shutterSpeed" mapstructure:"shutter_speed"`
	AWB          bool          `json:"awb" mapstructure:"awb"`
	AWBRed       float64       `json:"awbRed" mapstructure:"awb_red"`
	AWBBlue      float64       `json:"awbBlue" mapstructure:"awb_blue"`
	Saturation   uint          `json:"saturation" mapstructure:"saturation"` // 0..255
	HFlip        bool          `json:"hflip" mapstructure:"hflip"`
	VFlip        bool          `json:"vflip" mapstructure:"vflip"`

	MaxLatency uint32 `json:"maxLatency" mapstructure:"max_latency"` // microseconds
	MemReserve uint   `json:"memReserve" mapstructure:"mem_reserve"` // percent of RAM kept free
	StartShift int64  `json:"startShift" mapstructure:"start_shift"` // microseconds
	Duration   uint32 `json:"duration" mapstructure:"duration"`      // microseconds, 0 is unbounded
}

// DefaultParams returns the settings a fresh session starts with.
func DefaultParams() Params {
	return Params{
		Width:        640,
		Height:       480,
		Framerate:    30,
		Mode:         DefaultMode,
		Brightness:   50,
		AutoShutter:  true,
		ShutterSpeed: MaxShutterSpeed(30),
		AWB:          true,
		AWBRed:       1.0,
		AWBBlue:      1.0,
		Saturation:   200,
		MaxLatency:   100_000,
		MemReserve:   10,
	}
}

// MaxShutterSpeed is the longest exposure that fits in one frame period.
func MaxShutterSpeed(fps uint) time.Duration {
	if fps == 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// Normalize validates the mode and clamps out-of-range values into range.
// The mode itself is only checked here; its resolution is applied when the
// mode changes.
func (p Params) Normalize() (Params, error) {
	m, err := LookupMode(p.Mode)
	if err != nil {
		return p, err
	}
	if p.Width == 0 || p.Height == 0 {
		p.Width, p.Height = m.Width, m.Height
	}
	p.Framerate = clamp(p.Framerate, m.MinFPS, m.MaxFPS)
	p.Brightness = min(p.Brightness, 100)
	p.Saturation = min(p.Saturation, 255)
	p.MemReserve = min(p.MemReserve, 100)
	if p.AWBRed < 0 {
		p.AWBRed = 0
	}
	if p.AWBBlue < 0 {
		p.AWBBlue = 0
	}
	if p.ShutterSpeed < 0 {
		p.ShutterSpeed = 0
	}
	if limit := MaxShutterSpeed(p.Framerate); p.ShutterSpeed > limit {
		p.ShutterSpeed = limit
	}
	return p, nil
}

func clamp(v, lo, hi uint) uint {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Field names a live-adjustable parameter.
type Field uint

const (
	FieldFramerate Field = 1 << iota
	FieldBrightness
	FieldAutoShutter
	FieldAWB
	FieldAWBGains
	FieldShutterSpeed
	FieldSaturation
	FieldFlip
)

// FieldSet is a bit set of Fields.
type FieldSet uint

func (s FieldSet) Has(f Field) bool { return uint(s)&uint(f) != 0 }

func (s *FieldSet) add(f Field) { *s = FieldSet(uint(*s) | uint(f)) }

func (s FieldSet) Empty() bool { return s == 0 }

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldFramerate, "framerate"},
	{FieldBrightness, "brightness"},
	{FieldAutoShutter, "autoShutter"},
	{FieldAWB, "awb"},
	{FieldAWBGains, "awbGains"},
	{FieldShutterSpeed, "shutterSpeed"},
	{FieldSaturation, "saturation"},
	{FieldFlip, "flip"},
}

// Names lists the fields in the set.
func (s FieldSet) Names() []string {
	names := []string{}
	for _, fn := range fieldNames {
		if s.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Changes is the outcome of comparing requested settings with the applied
// ones.
type Changes struct {
	Live    FieldSet `json:"-"`
	Restart bool     `json:"restartRequired"`
}

// LiveApplied lists the fields applied without a restart.
func (c Changes) LiveApplied() []string {
	return c.Live.Names()
}

// Diff classifies every difference between applied and requested.
// Resolution and mode changes need a restart; sensor controls do not.
// Settings that only affect recording (shift, duration, latency, reserve)
// appear in neither.
func Diff(applied, requested Params) Changes {
	var c Changes
	if applied.Width != requested.Width || applied.Height != requested.Height || applied.Mode != requested.Mode {
		c.Restart = true
	}
	if applied.Framerate != requested.Framerate {
		c.Live.add(FieldFramerate)
	}
	if applied.Brightness != requested.Brightness {
		c.Live.add(FieldBrightness)
	}
	if applied.AutoShutter != requested.AutoShutter {
		c.Live.add(FieldAutoShutter)
	}
	if applied.AWB != requested.AWB {
		c.Live.add(FieldAWB)
	}
	if applied.AWBRed != requested.AWBRed || applied.AWBBlue != requested.AWBBlue {
		c.Live.add(FieldAWBGains)
	}
	if applied.ShutterSpeed != requested.ShutterSpeed {
		c.Live.add(FieldShutterSpeed)
	}
	if applied.Saturation != requested.Saturation {
		c.Live.add(FieldSaturation)
	}
	if applied.HFlip != requested.HFlip || applied.VFlip != requested.VFlip {
		c.Live.add(FieldFlip)
	}
	return c
}
