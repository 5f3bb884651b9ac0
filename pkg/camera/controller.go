package camera

import (
	"context"
	"fmt"
)

// ApplyParameters compares req with the applied settings. Sensor controls
// are pushed to a running driver immediately. A resolution or mode change
// restarts a running capture without waking its consumers, and resets the
// shutter to the longest exposure the framerate allows. Out-of-range values
// are clamped; only an unknown mode is rejected.
func (s *Session) ApplyParameters(req Params) (Changes, error) {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()

	if req.Mode != s.applied.Mode {
		m, err := LookupMode(req.Mode)
		if err != nil {
			return Changes{}, err
		}
		req.Width, req.Height = m.Width, m.Height
	}
	req, err := req.Normalize()
	if err != nil {
		return Changes{}, err
	}

	ch := Diff(s.applied, req)
	running := s.Running()
	s.requested = req

	s.mu.Lock()
	s.reserve = req.MemReserve
	s.mail.SetMaxLatency(req.MaxLatency)
	s.mu.Unlock()

	if ch.Restart && running {
		s.log.Info("Restarting capture for new resolution", "width", req.Width, "height", req.Height, "mode", req.Mode)
		s.stopLocked(true, false, RestartPending)
		s.requested.ShutterSpeed = MaxShutterSpeed(s.requested.Framerate)
		restartsCounter.Add(context.Background(), 1)
		if err := s.startLocked(); err != nil {
			return ch, fmt.Errorf("restart capture: %w", err)
		}
		return ch, nil
	}

	if running && !ch.Live.Empty() {
		if err := s.driver.ApplyControls(ControlsFor(req, ch.Live)); err != nil {
			s.log.Warn("Driver rejected controls", "fields", ch.LiveApplied(), "error", err)
		}
	}

	s.applied = req
	s.mu.Lock()
	s.setModeLimits(req.Mode)
	s.mu.Unlock()
	return ch, nil
}
