package kyo

import "strings"

type AlarmModel uint8

const (
	ModelUnknown AlarmModel = iota
	Model4
	Model8
	Model8G
	Model8W
	Model32
	Model32G
)

func (m AlarmModel) String() string {
	switch m {
	case Model4:
		return "KYO4"
	case Model8:
		return "KYO8"
	case Model8G:
		return "KYO8G"
	case Model8W:
		return "KYO8W"
	case Model32:
		return "KYO32"
	case Model32G:
		return "KYO32G"
	default:
		return "Unknown"
	}
}

// MaxZones is the number of zones the model supports.
func (m AlarmModel) MaxZones() int {
	return m.layout().zones
}

func (m AlarmModel) layout() layout {
	switch m {
	case Model4, Model8, Model8G, Model8W:
		return layout8
	case Model32G:
		return layout32G
	default:
		return layout32
	}
}

// knownModels is ordered longest prefix first.
var knownModels = []AlarmModel{Model32G, Model32, Model8G, Model8W, Model8, Model4}

// modelFromFirmware matches the firmware string against the known model names.
func modelFromFirmware(fw string) (AlarmModel, bool) {
	for _, m := range knownModels {
		if strings.HasPrefix(fw, m.String()) {
			return m, true
		}
	}
	return ModelUnknown, false
}

// modelFromSensorLength guesses the model from a sensor status response when
// the firmware string could not tell.
func modelFromSensorLength(n int) (AlarmModel, bool) {
	switch n {
	case respSensor32:
		return Model32, true
	case respSensor8:
		return Model8, true
	default:
		return ModelUnknown, false
	}
}

type family uint8

const (
	family8 family = iota
	family32
)

// layout describes where each status field sits in the sensor and partition
// status responses. A bit position of -1 means the field does not exist.
type layout struct {
	family          family
	zones           int
	sensorLen       int
	partitionLen    int
	partitionCmd    []byte
	zoneState       int
	zoneTamper      int
	warnings        int
	partitionAlarm  int
	tampers         int
	warningBits     [7]int
	tamperBits      [6]int
	zoneBypass      int
	zoneAlarmMemory int
	zoneTamperMem   int
	outputs         bool
}

var layout8 = layout{
	family:          family8,
	zones:           maxZones8,
	sensorLen:       respSensor8,
	partitionLen:    respPartition8,
	partitionCmd:    cmdPartition8,
	zoneState:       6,
	zoneTamper:      7,
	warnings:        8,
	partitionAlarm:  9,
	tampers:         10,
	warningBits:     [7]int{0, 1, 2, 3, 5, 6, -1},
	tamperBits:      [6]int{4, 5, 6, 7, -1, -1},
	zoneBypass:      11,
	zoneAlarmMemory: 12,
	zoneTamperMem:   13,
}

var layout32 = layout{
	family:          family32,
	zones:           maxZones,
	sensorLen:       respSensor32,
	partitionLen:    respPartition32,
	partitionCmd:    cmdPartition32,
	zoneState:       6,
	zoneTamper:      10,
	warnings:        14,
	partitionAlarm:  15,
	tampers:         16,
	warningBits:     [7]int{0, 1, 2, 3, 4, 5, 6},
	tamperBits:      [6]int{2, 3, 4, 5, 6, 7},
	zoneBypass:      13,
	zoneAlarmMemory: 17,
	zoneTamperMem:   21,
}

var layout32G = func() layout {
	l := layout32
	l.partitionCmd = cmdPartition32G
	l.outputs = true
	return l
}()

// Status is a snapshot of the decoded panel status.
type Status struct {
	Model         AlarmModel
	Firmware      string
	Communicating bool
	Siren         bool
	Warnings      Warnings
	Tampers       Tampers
	Zones         []Zone
	Partitions    []Partition
	Outputs       []Output
}

type Zone struct {
	Number       int
	Open         bool
	Tamper       bool
	Bypassed     bool
	AlarmMemory  bool
	TamperMemory bool
}

type Partition struct {
	Number             int
	Alarm              bool
	ArmedTotal         bool
	ArmedPartial       bool
	ArmedPartialDelay0 bool
	Disarmed           bool
}

// Armed reports whether the partition is armed in any mode.
func (p Partition) Armed() bool {
	return p.ArmedTotal || p.ArmedPartial || p.ArmedPartialDelay0
}

type Output struct {
	Number int
	Active bool
}

type Warnings struct {
	MainsFailure   bool
	BPIMissing     bool
	FuseFault      bool
	LowBattery     bool
	PhoneLineFault bool
	DefaultCodes   bool
	WirelessFault  bool
}

// Any reports whether any warning is set.
func (w Warnings) Any() bool {
	return w.MainsFailure || w.BPIMissing || w.FuseFault || w.LowBattery ||
		w.PhoneLineFault || w.DefaultCodes || w.WirelessFault
}

type Tampers struct {
	Zone     bool
	FalseKey bool
	BPI      bool
	System   bool
	RFJam    bool
	Wireless bool
}

// Any reports whether any tamper flag is set.
func (t Tampers) Any() bool {
	return t.Zone || t.FalseKey || t.BPI || t.System || t.RFJam || t.Wireless
}

// PanelConfig holds the configuration registers read after detection.
type PanelConfig struct {
	Zones      []ZoneConfig
	Outputs    []string
	Partitions []PartitionTimers
	Keyfobs    []Keyfob
}

type ZoneConfig struct {
	Number   int
	Type     ZoneType
	Name     string
	Areas    []int
	Enrolled bool
	Serial   string
}

type ZoneType uint8

func (t ZoneType) String() string {
	switch t {
	case 0x00:
		return "Instant"
	case 0x01:
		return "Delayed"
	case 0x02:
		return "Path"
	case 0x18:
		return "Unconfigured"
	default:
		return "Unknown"
	}
}

type PartitionTimers struct {
	Number     int
	EntryDelay int // seconds
	ExitDelay  int // seconds
	SirenTimer int
}

type Keyfob struct {
	Number int
	Name   string
	Serial string
}
