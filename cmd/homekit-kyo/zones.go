package main

import (
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	kyo "github.com/caarlos0/homekit-kyo"
)

func setupZones(
	cli *kyo.Client,
	cfg Config,
	status kyo.Status,
	panel kyo.PanelConfig,
) AlarmSensors {
	var sensors AlarmSensors
	for _, zone := range cfg.allZones(panel) {
		if zone.number < 1 || zone.number > len(status.Zones) {
			log.Warn("ignoring zone the panel does not have", "zone", zone.number, "model", status.Model)
			continue
		}

		a := newAlarmSensor(accessory.Info{
			Name:         zone.name,
			Manufacturer: manufacturer,
			Model:        zoneType(panel, zone.number),
			SerialNumber: zoneSerial(panel, zone.number),
		}, zone)
		a.Id = uint64(100 + zone.number)

		if a.Bypass != nil {
			a.Bypass.On.SetValueRequestFunc = func(value interface{}, _ *http.Request) (response interface{}, code int) {
				v := value.(bool)
				log.Info("set zone bypass", "zone", zone.number, "bypass", !v)
				var err error
				if v {
					err = cli.IncludeZone(zone.number)
				} else {
					err = cli.ExcludeZone(zone.number)
				}
				if err != nil {
					log.Error("failed to set bypass", "zone", zone.number, "value", v, "err", err)
					return nil, hap.JsonStatusResourceBusy
				}
				return nil, hap.JsonStatusSuccess
			}
		}

		a.Update(status.Zones[zone.number-1])
		sensors = append(sensors, a)
	}
	return sensors
}

func zoneType(panel kyo.PanelConfig, n int) string {
	if n > len(panel.Zones) {
		return ""
	}
	return panel.Zones[n-1].Type.String()
}

func zoneSerial(panel kyo.PanelConfig, n int) string {
	if n > len(panel.Zones) {
		return ""
	}
	return panel.Zones[n-1].Serial
}
