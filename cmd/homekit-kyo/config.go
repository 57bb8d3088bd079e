package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brutella/hap/characteristic"
	kyo "github.com/caarlos0/homekit-kyo"
	"golang.org/x/exp/slices"
)

type Config struct {
	Device         string        `env:"DEVICE,notEmpty"`
	Baud           int           `env:"BAUD"            envDefault:"9600"`
	Parity         string        `env:"PARITY"          envDefault:"even"`
	PollInterval   time.Duration `env:"POLL_INTERVAL"   envDefault:"500ms"`
	StartupTimeout time.Duration `env:"STARTUP_TIMEOUT" envDefault:"3m"`
	Partitions     []int         `env:"PARTITIONS"      envDefault:"0"`
	MotionZones    []int         `env:"MOTION"`
	ContactZones   []int         `env:"CONTACT"`
	BypassZones    []int         `env:"BYPASS"`
	ZoneNames      []string      `env:"ZONE_NAMES"`
	Outputs        []int         `env:"OUTPUTS"`
	// Codes accepted by /disarm. When empty, any code is accepted.
	Codes          []string      `env:"CODES"`
	ClockSync      bool          `env:"CLOCK_SYNC"`
	Address        string        `env:"LISTEN"          envDefault:":9009"`
	DB             string        `env:"DB"              envDefault:"./db"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
}

type zoneKind uint8

const (
	kindMotion = iota + 1
	kindContact
)

func (z zoneKind) String() string {
	switch z {
	case kindMotion:
		return "motion"
	default:
		return "contact"
	}
}

type zoneConfig struct {
	number      int
	name        string
	kind        zoneKind
	allowBypass bool
}

// zoneName prefers ZONE_NAMES, then the name programmed in the panel.
func (c Config) zoneName(n int, panel kyo.PanelConfig) string {
	if len(c.ZoneNames) > n-1 {
		if name := c.ZoneNames[n-1]; name != "" {
			return name
		}
	}
	if len(panel.Zones) > n-1 {
		if name := panel.Zones[n-1].Name; name != "" {
			return name
		}
	}
	return fmt.Sprintf("Zone %d", n)
}

type allZoneConfigs []zoneConfig

func (a allZoneConfigs) String() string {
	var zones []string
	for _, zone := range a {
		zones = append(
			zones,
			fmt.Sprintf("zone %d: %q (%s)", zone.number, zone.name, zone.kind.String()),
		)
	}
	return strings.Join(zones, "\n")
}

func (c Config) allZones(panel kyo.PanelConfig) []zoneConfig {
	var zones []zoneConfig
	for _, z := range c.MotionZones {
		zones = append(zones, zoneConfig{
			number:      z,
			name:        c.zoneName(z, panel),
			kind:        kindMotion,
			allowBypass: slices.Contains(c.BypassZones, z),
		})
	}
	for _, z := range c.ContactZones {
		zones = append(zones, zoneConfig{
			number:      z,
			name:        c.zoneName(z, panel),
			kind:        kindContact,
			allowBypass: slices.Contains(c.BypassZones, z),
		})
	}
	slices.SortFunc(zones, func(a, b zoneConfig) int {
		if a.number > b.number {
			return 1
		}
		return -1
	})
	return zones
}

// partitionMask returns the partitions controlled by the security system,
// where 0 means all of them.
func (c Config) partitionMask() uint8 {
	var mask uint8
	for _, p := range c.Partitions {
		if p == 0 {
			return 0xFF
		}
		if p >= 1 && p <= 8 {
			mask |= 1 << (p - 1)
		}
	}
	return mask
}

func (c Config) controls(p kyo.Partition) bool {
	if p.Number < 1 || p.Number > 8 {
		return false
	}
	return c.partitionMask()&(1<<(p.Number-1)) != 0
}

// getAlarmState maps the controlled partitions to a HomeKit state:
// triggered, then away (total), stay (partial), night (partial delay 0),
// and finally disarmed.
func (c Config) getAlarmState(status kyo.Status) int {
	var total, partial, delay0 bool
	for _, p := range status.Partitions {
		if !c.controls(p) {
			continue
		}
		if p.Alarm {
			return characteristic.SecuritySystemCurrentStateAlarmTriggered
		}
		total = total || p.ArmedTotal
		partial = partial || p.ArmedPartial
		delay0 = delay0 || p.ArmedPartialDelay0
	}
	switch {
	case total:
		return characteristic.SecuritySystemCurrentStateAwayArm
	case partial:
		return characteristic.SecuritySystemCurrentStateStayArm
	case delay0:
		return characteristic.SecuritySystemCurrentStateNightArm
	default:
		return characteristic.SecuritySystemCurrentStateDisarmed
	}
}

// presetMasks computes the arming masks for a HomeKit target state.
// Partitions outside PARTITIONS keep their current arming.
func (c Config) presetMasks(status kyo.Status, target int) (total, partial, delay0 uint8, err error) {
	mask := c.partitionMask()
	for _, p := range status.Partitions {
		if c.controls(p) || p.Number < 1 || p.Number > 8 {
			continue
		}
		bit := uint8(1) << (p.Number - 1)
		switch {
		case p.ArmedTotal:
			total |= bit
		case p.ArmedPartial:
			partial |= bit
		case p.ArmedPartialDelay0:
			delay0 |= bit
		}
	}

	switch target {
	case characteristic.SecuritySystemTargetStateAwayArm:
		total |= mask
	case characteristic.SecuritySystemTargetStateStayArm:
		partial |= mask
	case characteristic.SecuritySystemTargetStateNightArm:
		delay0 |= mask
	case characteristic.SecuritySystemTargetStateDisarm:
	default:
		return 0, 0, 0, fmt.Errorf("invalid target state: %d", target)
	}
	return total, partial, delay0, nil
}

func (c Config) validCode(code string) bool {
	if len(c.Codes) == 0 {
		return true
	}
	return code != "" && slices.Contains(c.Codes, code)
}
