package main

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	kyo "github.com/caarlos0/homekit-kyo"
)

// Panel reports the health of the panel itself. The contact opens when the
// serial link is lost.
type Panel struct {
	*accessory.A
	Link       *service.ContactSensor
	LowBattery *characteristic.StatusLowBattery
	Tamper     *characteristic.StatusTampered
	Fault      *characteristic.StatusFault
}

func newPanel(info accessory.Info) *Panel {
	a := Panel{}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.LowBattery = characteristic.NewStatusLowBattery()
	a.Tamper = characteristic.NewStatusTampered()
	a.Fault = characteristic.NewStatusFault()

	a.Link = service.NewContactSensor()
	a.Link.AddC(a.Tamper.C)
	a.Link.AddC(a.LowBattery.C)
	a.Link.AddC(a.Fault.C)
	a.AddS(a.Link.S)

	return &a
}

func (panel *Panel) Update(status kyo.Status) {
	_ = panel.Link.ContactSensorState.SetValue(boolAs[int](!status.Communicating))
	_ = panel.LowBattery.SetValue(boolAs[int](status.Warnings.LowBattery))
	_ = panel.Tamper.SetValue(boolAs[int](status.Tampers.Any()))
	_ = panel.Fault.SetValue(boolAs[int](
		status.Warnings.MainsFailure ||
			status.Warnings.FuseFault ||
			status.Warnings.BPIMissing ||
			status.Warnings.WirelessFault,
	))
}

func setupPanel(status kyo.Status) *Panel {
	a := newPanel(accessory.Info{
		Name:         "Alarm Panel",
		Manufacturer: manufacturer,
		Model:        status.Model.String(),
		Firmware:     status.Firmware,
	})
	a.Update(status)
	a.Id = 300
	return a
}
