package kyo

// Field identifies a published value. Per-zone, per-partition, per-output
// and per-keyfob fields carry a 0-based Event.Index.
type Field uint8

const (
	FieldZone Field = iota
	FieldZoneTamper
	FieldZoneBypass
	FieldZoneAlarmMemory
	FieldZoneTamperMemory
	FieldPartitionAlarm
	FieldPartitionArmedTotal
	FieldPartitionArmedPartial
	FieldPartitionArmedPartialDelay0
	FieldPartitionDisarmed
	FieldWarningMainsFailure
	FieldWarningBPIMissing
	FieldWarningFuseFault
	FieldWarningLowBattery
	FieldWarningPhoneLineFault
	FieldWarningDefaultCodes
	FieldWarningWirelessFault
	FieldTamperZone
	FieldTamperFalseKey
	FieldTamperBPI
	FieldTamperSystem
	FieldTamperRFJam
	FieldTamperWireless
	FieldSiren
	FieldOutput
	FieldCommunication

	// text fields
	FieldFirmwareVersion
	FieldModel
	FieldZoneType
	FieldZoneName
	FieldZoneArea
	FieldZoneSerial
	FieldOutputName
	FieldPartitionEntryDelay
	FieldPartitionExitDelay
	FieldPartitionSirenTimer
	FieldKeyfobSerial
	FieldKeyfobName
)

var fieldNames = [...]string{
	FieldZone:                        "zone",
	FieldZoneTamper:                  "zone_tamper",
	FieldZoneBypass:                  "zone_bypass",
	FieldZoneAlarmMemory:             "zone_alarm_memory",
	FieldZoneTamperMemory:            "zone_tamper_memory",
	FieldPartitionAlarm:              "partition_alarm",
	FieldPartitionArmedTotal:         "partition_armed_total",
	FieldPartitionArmedPartial:       "partition_armed_partial",
	FieldPartitionArmedPartialDelay0: "partition_armed_partial_delay0",
	FieldPartitionDisarmed:           "partition_disarmed",
	FieldWarningMainsFailure:         "warning_mains_failure",
	FieldWarningBPIMissing:           "warning_bpi_missing",
	FieldWarningFuseFault:            "warning_fuse_fault",
	FieldWarningLowBattery:           "warning_low_battery",
	FieldWarningPhoneLineFault:       "warning_phone_line_fault",
	FieldWarningDefaultCodes:         "warning_default_codes",
	FieldWarningWirelessFault:        "warning_wireless_fault",
	FieldTamperZone:                  "tamper_zone",
	FieldTamperFalseKey:              "tamper_false_key",
	FieldTamperBPI:                   "tamper_bpi",
	FieldTamperSystem:                "tamper_system",
	FieldTamperRFJam:                 "tamper_rf_jam",
	FieldTamperWireless:              "tamper_wireless",
	FieldSiren:                       "siren",
	FieldOutput:                      "output",
	FieldCommunication:               "communication",
	FieldFirmwareVersion:             "firmware_version",
	FieldModel:                       "model",
	FieldZoneType:                    "zone_type",
	FieldZoneName:                    "zone_name",
	FieldZoneArea:                    "zone_area",
	FieldZoneSerial:                  "zone_serial",
	FieldOutputName:                  "output_name",
	FieldPartitionEntryDelay:         "partition_entry_delay",
	FieldPartitionExitDelay:          "partition_exit_delay",
	FieldPartitionSirenTimer:         "partition_siren_timer",
	FieldKeyfobSerial:                "keyfob_serial",
	FieldKeyfobName:                  "keyfob_name",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

// IsText reports whether the field carries Event.Text instead of Event.Value.
func (f Field) IsText() bool {
	return f >= FieldFirmwareVersion
}

// Event is a single published value.
type Event struct {
	Field Field
	Index int
	Value bool
	Text  string
}

// Publisher receives status and configuration values.
type Publisher interface {
	Publish(Event)
}

// PublishFunc adapts a function to a Publisher.
type PublishFunc func(Event)

func (f PublishFunc) Publish(e Event) { f(e) }

type discard struct{}

func (discard) Publish(Event) {}
