package camera

import "time"

const (
	brightnessKnee          = 75
	brightnessGain          = 1.0 // smaller is more gain
	brightnessContrastRatio = 0.5
)

// Controls are the sensor controls derived from Params, in the units a
// libcamera style driver expects.
type Controls struct {
	// Changed marks the controls that differ from the previous push. A full
	// set is sent when the driver starts.
	Changed FieldSet

	ExposureValue float64
	Brightness    float64 // -1..1
	Contrast      float64 // 1 is neutral
	Saturation    float64 // 1 is neutral

	// ColourGains of zero request automatic white balance.
	RedGain  float64
	BlueGain float64

	FrameDuration time.Duration
	// ExposureTime of zero requests automatic exposure.
	ExposureTime time.Duration

	HFlip bool
	VFlip bool
}

// ControlsFor translates p into driver controls.
func ControlsFor(p Params, changed FieldSet) Controls {
	c := Controls{
		Changed:       changed,
		ExposureValue: (float64(p.Brightness) - 50) / 5,
		Contrast:      1,
		Saturation:    float64(p.Saturation) / 200,
		HFlip:         p.HFlip,
		VFlip:         p.VFlip,
	}

	// Past the knee brightness and contrast are raised together as digital
	// gain.
	if p.Brightness > brightnessKnee {
		over := float64(p.Brightness) - brightnessKnee
		c.Brightness = over / ((100 - brightnessKnee) * brightnessGain)
		c.Contrast = over/((100-brightnessKnee)*brightnessGain*brightnessContrastRatio) + 1
	}

	if !p.AWB {
		c.RedGain = p.AWBRed * 2
		c.BlueGain = p.AWBBlue * 2
	}

	c.FrameDuration = MaxShutterSpeed(p.Framerate)
	if !p.AutoShutter {
		c.ExposureTime = p.ShutterSpeed
	}
	return c
}
