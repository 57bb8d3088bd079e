package main

import (
	kyo "github.com/caarlos0/homekit-kyo"
)

type PageItem struct {
	Number   int
	Name     string
	Open     bool
	Tamper   bool
	Bypassed bool
	Active   bool
}

type Page struct {
	State         string
	Model         string
	Firmware      string
	Communicating bool
	Siren         bool
	Warnings      []string
	Tampers       []string
	DisarmCode    bool
	Zones         []PageItem
	Outputs       []PageItem
	Partitions    []kyo.Partition
}

var stateNames = [5]string{
	"Armed: Stay",
	"Armed: Away",
	"Armed: Night",
	"Disarmed",
	"Alarm Triggered",
}

func newPage(
	cfg Config,
	status kyo.Status,
	panel kyo.PanelConfig,
	sensors AlarmSensors,
	outputs []*Output,
) Page {
	page := Page{
		State:         stateNames[cfg.getAlarmState(status)],
		Model:         status.Model.String(),
		Firmware:      status.Firmware,
		Communicating: status.Communicating,
		Siren:         status.Siren,
		Warnings:      warningNames(status.Warnings),
		Tampers:       tamperNames(status.Tampers),
		DisarmCode:    len(cfg.Codes) > 0,
	}

	for _, sensor := range sensors {
		if sensor.Number > len(status.Zones) {
			continue
		}
		zone := status.Zones[sensor.Number-1]
		page.Zones = append(page.Zones, PageItem{
			Number:   zone.Number,
			Name:     sensor.Name(),
			Open:     zone.Open,
			Tamper:   zone.Tamper,
			Bypassed: zone.Bypassed,
		})
	}

	for _, output := range outputs {
		item := PageItem{
			Number: output.Number,
			Name:   outputName(panel, output.Number),
		}
		if output.Number <= len(status.Outputs) {
			item.Active = status.Outputs[output.Number-1].Active
		}
		page.Outputs = append(page.Outputs, item)
	}

	for _, p := range status.Partitions {
		if cfg.controls(p) {
			page.Partitions = append(page.Partitions, p)
		}
	}
	return page
}

func warningNames(w kyo.Warnings) []string {
	var names []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{w.MainsFailure, "Mains failure"},
		{w.BPIMissing, "BPI missing"},
		{w.FuseFault, "Fuse fault"},
		{w.LowBattery, "Low battery"},
		{w.PhoneLineFault, "Phone line fault"},
		{w.DefaultCodes, "Default codes"},
		{w.WirelessFault, "Wireless fault"},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}
	return names
}

func tamperNames(t kyo.Tampers) []string {
	var names []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{t.Zone, "Zone"},
		{t.FalseKey, "False key"},
		{t.BPI, "BPI"},
		{t.System, "System"},
		{t.RFJam, "RF jam"},
		{t.Wireless, "Wireless"},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}
	return names
}
