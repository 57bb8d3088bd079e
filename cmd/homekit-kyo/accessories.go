package main

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	kyo "github.com/caarlos0/homekit-kyo"
)

type AlarmSensors []*AlarmSensor

func (sensors AlarmSensors) Update(status kyo.Status) {
	for _, sensor := range sensors {
		if n := sensor.Number; n <= len(status.Zones) {
			sensor.Update(status.Zones[n-1])
		}
	}
}

type AlarmSensor struct {
	*accessory.A
	Number  int
	Kind    zoneKind
	Motion  *service.MotionSensor
	Contact *service.ContactSensor
	Bypass  *service.Switch
	Tamper  *characteristic.StatusTampered
}

func (sensor *AlarmSensor) Update(zone kyo.Zone) {
	tamper := boolAs[int](zone.Tamper)
	if sensor.Tamper.Value() != tamper {
		log.Info("tamper", "zone", zone.Number, "status", zone.Tamper)
		_ = sensor.Tamper.SetValue(tamper)
	}

	// the switch is on while the zone is included.
	if sensor.Bypass != nil && sensor.Bypass.On.Value() == zone.Bypassed {
		log.Info("bypass", "zone", zone.Number, "status", zone.Bypassed)
		sensor.Bypass.On.SetValue(!zone.Bypassed)
	}

	switch sensor.Kind {
	case kindContact:
		current := boolAs[int](zone.Open)
		if v := sensor.Contact.ContactSensorState.Value(); v == current {
			return
		}
		_ = sensor.Contact.ContactSensorState.SetValue(current)
		log.Info("contact", "zone", zone.Number, "open", zone.Open)
	case kindMotion:
		if v := sensor.Motion.MotionDetected.Value(); v == zone.Open {
			return
		}
		sensor.Motion.MotionDetected.SetValue(zone.Open)
		log.Info("motion", "zone", zone.Number, "open", zone.Open)
	}
}

func newAlarmSensor(info accessory.Info, zone zoneConfig) *AlarmSensor {
	a := AlarmSensor{
		Number: zone.number,
		Kind:   zone.kind,
	}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.Tamper = characteristic.NewStatusTampered()

	switch zone.kind {
	case kindContact:
		a.Contact = service.NewContactSensor()
		a.Contact.AddC(a.Tamper.C)
		a.AddS(a.Contact.S)
	case kindMotion:
		a.Motion = service.NewMotionSensor()
		a.Motion.AddC(a.Tamper.C)
		a.AddS(a.Motion.S)
	}

	if zone.allowBypass {
		a.Bypass = service.NewSwitch()
		a.AddS(a.Bypass.S)
	}

	return &a
}
