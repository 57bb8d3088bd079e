package kyo

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// store holds the latest decoded panel state. Arrays are sized for the
// largest model; entries beyond the detected zone count are never written.
type store struct {
	model    AlarmModel
	detected bool
	firmware string

	zoneState        [maxZones]bool
	zoneTamper       [maxZones]bool
	zoneBypass       [maxZones]bool
	zoneAlarmMemory  [maxZones]bool
	zoneTamperMemory [maxZones]bool

	partitionAlarm     [maxPartitions]bool
	armedTotal         [maxPartitions]bool
	armedPartial       [maxPartitions]bool
	armedPartialDelay0 [maxPartitions]bool
	disarmed           [maxPartitions]bool

	warnings [7]bool
	tampers  [6]bool
	siren    bool
	outputs  [maxOutputs]bool

	sensorCache    []byte
	partitionCache []byte
	// partitionsRead is set once a partition status read succeeded.
	partitionsRead bool

	zoneType            [maxZones]byte
	zoneArea            [maxZones]byte
	zoneEnrolled        [maxZones]bool
	zoneName            [maxZones]string
	zoneSerial          [maxZones]string
	outputName          [maxOutputs]string
	partitionEntryDelay [maxPartitions]byte
	partitionExitDelay  [maxPartitions]byte
	partitionSirenTimer [maxPartitions]byte
	keyfobSerial        [maxKeyfobs]string
	keyfobName          [maxKeyfobs]string
}

func (s *store) layout() layout {
	return s.model.layout()
}

// maxZones is zero until the model is known.
func (s *store) maxZones() int {
	if !s.detected {
		return 0
	}
	return s.model.MaxZones()
}

// detectVersion parses a version query response. It reports false when the
// firmware string names no known model.
func (s *store) detectVersion(rx []byte) (bool, error) {
	if len(rx) < respVersion {
		return false, fmt.Errorf("%w: version query returned %d bytes", ErrMalformed, len(rx))
	}
	fw := panelString(rx[6:18])
	s.firmware = fw
	log.Info("firmware", "version", fw)

	m, ok := modelFromFirmware(fw)
	if !ok {
		log.Warn("unknown model in firmware string", "firmware", fw)
		return false, nil
	}
	s.model = m
	s.detected = true
	log.Info("detected model", "model", m, "zones", m.MaxZones())
	return true, nil
}

// sensorChanged compares rx with the cached sensor status response and
// refreshes the cache.
func (s *store) sensorChanged(rx []byte) bool {
	changed := !bytes.Equal(rx, s.sensorCache)
	s.sensorCache = append(s.sensorCache[:0], rx...)
	return changed
}

func (s *store) partitionChanged(rx []byte) bool {
	changed := !bytes.Equal(rx, s.partitionCache)
	s.partitionCache = append(s.partitionCache[:0], rx...)
	return changed
}

// checkSensorLength validates a sensor status response, falling back to the
// response length to pick a model when the firmware string did not.
func (s *store) checkSensorLength(rx []byte) error {
	if !s.detected {
		m, ok := modelFromSensorLength(len(rx))
		if !ok {
			return fmt.Errorf("%w: sensor status returned %d bytes", ErrMalformed, len(rx))
		}
		s.model = m
		s.detected = true
		log.Warn("model not detected via firmware, guessing from response length", "model", m, "len", len(rx))
		return nil
	}
	if len(rx) != respSensor32 && len(rx) != respSensor8 {
		return fmt.Errorf("%w: sensor status returned %d bytes", ErrMalformed, len(rx))
	}
	if len(rx) != s.layout().sensorLen {
		return fmt.Errorf("%w: sensor status returned %d bytes for %s", ErrMalformed, len(rx), s.model)
	}
	return nil
}

func (s *store) decodeSensor(rx []byte) {
	l := s.layout()
	for i := range s.maxZones() {
		s.zoneState[i] = zoneBit(l.family, rx, l.zoneState, i)
		s.zoneTamper[i] = zoneBit(l.family, rx, l.zoneTamper, i)
	}
	for i := range maxPartitions {
		s.partitionAlarm[i] = bit8(rx, l.partitionAlarm, i)
	}
	for i, b := range l.warningBits {
		s.warnings[i] = b >= 0 && bit8(rx, l.warnings, b)
	}
	for i, b := range l.tamperBits {
		s.tampers[i] = b >= 0 && bit8(rx, l.tampers, b)
	}
}

func (s *store) checkPartitionLength(rx []byte) error {
	if len(rx) != respPartition32 && len(rx) != respPartition8 {
		return fmt.Errorf("%w: partition status returned %d bytes", ErrMalformed, len(rx))
	}
	if len(rx) != s.layout().partitionLen {
		return fmt.Errorf("%w: partition status returned %d bytes for %s", ErrMalformed, len(rx), s.model)
	}
	return nil
}

func (s *store) decodePartition(rx []byte) {
	l := s.layout()
	for i := range maxPartitions {
		s.armedTotal[i] = bit8(rx, 6, i)
		s.armedPartial[i] = bit8(rx, 7, i)
		s.armedPartialDelay0[i] = bit8(rx, 8, i)
		s.disarmed[i] = bit8(rx, 9, i)
	}
	s.siren = bit8(rx, 10, 5)
	if l.outputs {
		for i := range maxOutputs {
			s.outputs[i] = bit8(rx, 12, i)
		}
	}
	for i := range s.maxZones() {
		s.zoneBypass[i] = zoneBit(l.family, rx, l.zoneBypass, i)
		s.zoneAlarmMemory[i] = zoneBit(l.family, rx, l.zoneAlarmMemory, i)
		s.zoneTamperMemory[i] = zoneBit(l.family, rx, l.zoneTamperMem, i)
	}
}

// armingMasks returns the current total and partial arming bitmaps.
func (s *store) armingMasks() (total, partial byte) {
	for i := range maxPartitions {
		if s.armedTotal[i] {
			total |= 1 << i
		}
		if s.armedPartial[i] {
			partial |= 1 << i
		}
	}
	return total, partial
}

// assumeArming records the masks of a sent arm command until the next
// partition status read replaces them.
func (s *store) assumeArming(total, partial byte) {
	for i := range maxPartitions {
		s.armedTotal[i] = total&(1<<i) != 0
		s.armedPartial[i] = partial&(1<<i) != 0
	}
	s.partitionCache = nil
}

func (s *store) sensorEvents() []Event {
	var events []Event
	for i := range s.maxZones() {
		events = append(events,
			Event{Field: FieldZone, Index: i, Value: s.zoneState[i]},
			Event{Field: FieldZoneTamper, Index: i, Value: s.zoneTamper[i]},
		)
	}
	for i := range maxPartitions {
		events = append(events, Event{Field: FieldPartitionAlarm, Index: i, Value: s.partitionAlarm[i]})
	}
	for i, v := range s.warnings {
		events = append(events, Event{Field: FieldWarningMainsFailure + Field(i), Value: v})
	}
	for i, v := range s.tampers {
		events = append(events, Event{Field: FieldTamperZone + Field(i), Value: v})
	}
	return events
}

func (s *store) partitionEvents() []Event {
	var events []Event
	for i := range maxPartitions {
		events = append(events,
			Event{Field: FieldPartitionArmedTotal, Index: i, Value: s.armedTotal[i]},
			Event{Field: FieldPartitionArmedPartial, Index: i, Value: s.armedPartial[i]},
			Event{Field: FieldPartitionArmedPartialDelay0, Index: i, Value: s.armedPartialDelay0[i]},
			Event{Field: FieldPartitionDisarmed, Index: i, Value: s.disarmed[i]},
		)
	}
	events = append(events, Event{Field: FieldSiren, Value: s.siren})
	if s.layout().outputs {
		for i := range maxOutputs {
			events = append(events, Event{Field: FieldOutput, Index: i, Value: s.outputs[i]})
		}
	}
	for i := range s.maxZones() {
		events = append(events,
			Event{Field: FieldZoneBypass, Index: i, Value: s.zoneBypass[i]},
			Event{Field: FieldZoneAlarmMemory, Index: i, Value: s.zoneAlarmMemory[i]},
			Event{Field: FieldZoneTamperMemory, Index: i, Value: s.zoneTamperMemory[i]},
		)
	}
	return events
}

func (s *store) identityEvents() []Event {
	return []Event{
		{Field: FieldFirmwareVersion, Text: s.firmware},
		{Field: FieldModel, Text: s.model.String()},
	}
}

func (s *store) textEvents() []Event {
	events := s.identityEvents()
	for i := range s.maxZones() {
		events = append(events,
			Event{Field: FieldZoneType, Index: i, Text: ZoneType(s.zoneType[i]).String()},
			Event{Field: FieldZoneName, Index: i, Text: s.zoneName[i]},
			Event{Field: FieldZoneArea, Index: i, Text: areaList(s.zoneArea[i])},
			Event{Field: FieldZoneSerial, Index: i, Text: orNA(s.zoneSerial[i])},
		)
	}
	for i := range maxOutputs {
		events = append(events, Event{Field: FieldOutputName, Index: i, Text: s.outputName[i]})
	}
	for i := range maxPartitions {
		events = append(events,
			Event{Field: FieldPartitionEntryDelay, Index: i, Text: strconv.Itoa(int(s.partitionEntryDelay[i])) + "s"},
			Event{Field: FieldPartitionExitDelay, Index: i, Text: strconv.Itoa(int(s.partitionExitDelay[i])) + "s"},
			Event{Field: FieldPartitionSirenTimer, Index: i, Text: strconv.Itoa(int(s.partitionSirenTimer[i]))},
		)
	}
	for i := range maxKeyfobs {
		events = append(events,
			Event{Field: FieldKeyfobSerial, Index: i, Text: orNA(s.keyfobSerial[i])},
			Event{Field: FieldKeyfobName, Index: i, Text: orNA(s.keyfobName[i])},
		)
	}
	return events
}

func (s *store) status() Status {
	st := Status{
		Model:    s.model,
		Firmware: s.firmware,
		Siren:    s.siren,
		Warnings: Warnings{
			MainsFailure:   s.warnings[0],
			BPIMissing:     s.warnings[1],
			FuseFault:      s.warnings[2],
			LowBattery:     s.warnings[3],
			PhoneLineFault: s.warnings[4],
			DefaultCodes:   s.warnings[5],
			WirelessFault:  s.warnings[6],
		},
		Tampers: Tampers{
			Zone:     s.tampers[0],
			FalseKey: s.tampers[1],
			BPI:      s.tampers[2],
			System:   s.tampers[3],
			RFJam:    s.tampers[4],
			Wireless: s.tampers[5],
		},
		Zones:      make([]Zone, s.maxZones()),
		Partitions: make([]Partition, maxPartitions),
	}
	for i := range st.Zones {
		st.Zones[i] = Zone{
			Number:       i + 1,
			Open:         s.zoneState[i],
			Tamper:       s.zoneTamper[i],
			Bypassed:     s.zoneBypass[i],
			AlarmMemory:  s.zoneAlarmMemory[i],
			TamperMemory: s.zoneTamperMemory[i],
		}
	}
	for i := range st.Partitions {
		st.Partitions[i] = Partition{
			Number:             i + 1,
			Alarm:              s.partitionAlarm[i],
			ArmedTotal:         s.armedTotal[i],
			ArmedPartial:       s.armedPartial[i],
			ArmedPartialDelay0: s.armedPartialDelay0[i],
			Disarmed:           s.disarmed[i],
		}
	}
	if s.layout().outputs {
		st.Outputs = make([]Output, maxOutputs)
		for i := range st.Outputs {
			st.Outputs[i] = Output{Number: i + 1, Active: s.outputs[i]}
		}
	}
	return st
}

func (s *store) panelConfig() PanelConfig {
	cfg := PanelConfig{
		Zones:      make([]ZoneConfig, s.maxZones()),
		Outputs:    make([]string, maxOutputs),
		Partitions: make([]PartitionTimers, maxPartitions),
		Keyfobs:    make([]Keyfob, maxKeyfobs),
	}
	for i := range cfg.Zones {
		cfg.Zones[i] = ZoneConfig{
			Number:   i + 1,
			Type:     ZoneType(s.zoneType[i]),
			Name:     s.zoneName[i],
			Areas:    areas(s.zoneArea[i]),
			Enrolled: s.zoneEnrolled[i],
			Serial:   s.zoneSerial[i],
		}
	}
	copy(cfg.Outputs, s.outputName[:])
	for i := range cfg.Partitions {
		cfg.Partitions[i] = PartitionTimers{
			Number:     i + 1,
			EntryDelay: int(s.partitionEntryDelay[i]),
			ExitDelay:  int(s.partitionExitDelay[i]),
			SirenTimer: int(s.partitionSirenTimer[i]),
		}
	}
	for i := range cfg.Keyfobs {
		cfg.Keyfobs[i] = Keyfob{
			Number: i + 1,
			Name:   s.keyfobName[i],
			Serial: s.keyfobSerial[i],
		}
	}
	return cfg
}

func areas(mask byte) []int {
	var result []int
	for bit := range maxPartitions {
		if mask&(1<<bit) != 0 {
			result = append(result, bit+1)
		}
	}
	return result
}

func areaList(mask byte) string {
	var parts []string
	for _, a := range areas(mask) {
		parts = append(parts, strconv.Itoa(a))
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
