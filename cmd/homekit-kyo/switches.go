package main

import (
	"net/http"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	kyo "github.com/caarlos0/homekit-kyo"
)

// setupResetButton clears alarm and tamper memories. It shows as on while
// the siren sounds and turns itself off after a reset.
func setupResetButton(cli *kyo.Client) *accessory.Switch {
	a := accessory.NewSwitch(accessory.Info{
		Name:         "Reset Alarms",
		Manufacturer: manufacturer,
	})
	a.Switch.On.SetValueRequestFunc = func(value interface{}, _ *http.Request) (response interface{}, code int) {
		if !value.(bool) {
			return nil, hap.JsonStatusSuccess
		}
		log.Warn("resetting alarms")
		if err := cli.ResetAlarms(); err != nil {
			log.Error("failed to reset alarms", "err", err)
			return nil, hap.JsonStatusResourceBusy
		}
		time.AfterFunc(time.Second, func() {
			a.Switch.On.SetValue(false)
		})
		return nil, hap.JsonStatusSuccess
	}
	return a
}

// setupPollingSwitch lets the serial line be handed over to other tools.
func setupPollingSwitch(cli *kyo.Client) *accessory.Switch {
	a := accessory.NewSwitch(accessory.Info{
		Name:         "Panel Polling",
		Manufacturer: manufacturer,
	})
	a.Switch.On.SetValue(cli.PollingEnabled())
	a.Switch.On.SetValueRequestFunc = func(value interface{}, _ *http.Request) (response interface{}, code int) {
		cli.SetPollingEnabled(value.(bool))
		return nil, hap.JsonStatusSuccess
	}
	return a
}
