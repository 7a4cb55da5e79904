package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Burn speed limits offered by the speed slider
const (
	MinBurnSpeed = 2
	MaxBurnSpeed = 16
)

// SessionMode selects how cdrecord writes the session
type SessionMode int

const (
	DiscAtOnce SessionMode = iota
	TrackAtOnce
)

// String returns the short name used in configuration
func (m SessionMode) String() string {
	if m == TrackAtOnce {
		return "tao"
	}
	return "dao"
}

// Label returns the menu label for the mode
func (m SessionMode) Label() string {
	if m == TrackAtOnce {
		return "Track At Once (TAO)"
	}
	return "Disc At Once (DAO)"
}

// SessionModes lists the modes in menu order
func SessionModes() []SessionMode {
	return []SessionMode{DiscAtOnce, TrackAtOnce}
}

// ParseSessionMode accepts "dao", "sao", "tao" or a menu label
func ParseSessionMode(s string) (SessionMode, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(upper, "DAO"), upper == "SAO":
		return DiscAtOnce, nil
	case strings.Contains(upper, "TAO"):
		return TrackAtOnce, nil
	default:
		return DiscAtOnce, fmt.Errorf("unknown session mode: %q (must be 'dao' or 'tao')", s)
	}
}

// BurnSettings holds the toolbar state used for a burn
type BurnSettings struct {
	Session           SessionMode
	MultiSession      bool
	OnTheFly          bool
	DummyMode         bool
	EjectAfterBurning bool

	speed int
}

// DefaultBurnSettings returns DAO at the lowest speed with every option off
func DefaultBurnSettings() BurnSettings {
	return BurnSettings{Session: DiscAtOnce, speed: MinBurnSpeed}
}

// settingsFromConfig builds the initial toolbar state
func settingsFromConfig(cfg BurnConfig) (BurnSettings, error) {
	settings := DefaultBurnSettings()

	mode, err := ParseSessionMode(cfg.Session)
	if err != nil {
		return settings, err
	}
	settings.Session = mode
	settings.SetSpeed(cfg.Speed)

	return settings, nil
}

// SetSpeed sets the burn speed, clamped to the supported range
func (b *BurnSettings) SetSpeed(speed int) {
	if speed < MinBurnSpeed {
		speed = MinBurnSpeed
	}
	if speed > MaxBurnSpeed {
		speed = MaxBurnSpeed
	}
	b.speed = speed
}

// Speed returns the burn speed multiplier
func (b BurnSettings) Speed() int {
	if b.speed == 0 {
		return MinBurnSpeed
	}
	return b.speed
}

// SpeedLabel returns the slider label, e.g. "Burn Speed: 4X"
func (b BurnSettings) SpeedLabel() string {
	return fmt.Sprintf("Burn Speed: %dX", b.Speed())
}

// IsDiscAtOnce reports true for DAO/SAO and false for TAO
func (b BurnSettings) IsDiscAtOnce() bool {
	return b.Session == DiscAtOnce
}

// CdrecordArgs returns the cdrecord arguments that would burn image to device.
// On-the-fly burns read the image from standard input.
func (b BurnSettings) CdrecordArgs(device DeviceRecord, image string) []string {
	args := []string{
		"-v",
		"dev=" + device.BusNumber,
		"speed=" + strconv.Itoa(b.Speed()),
	}

	if b.IsDiscAtOnce() {
		args = append(args, "-dao")
	} else {
		args = append(args, "-tao")
	}
	if b.MultiSession {
		args = append(args, "-multi")
	}
	if b.DummyMode {
		args = append(args, "-dummy")
	}
	if b.EjectAfterBurning {
		args = append(args, "-eject")
	}

	if b.OnTheFly {
		image = "-"
	}
	return append(args, image)
}

// GetBurningCommand returns the command line that would be used for burning
func GetBurningCommand(tool string, settings BurnSettings, device DeviceRecord, image string) string {
	return tool + " " + strings.Join(settings.CdrecordArgs(device, image), " ")
}
