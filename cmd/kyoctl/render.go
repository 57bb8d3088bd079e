package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	kyo "github.com/caarlos0/homekit-kyo"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	title = lipgloss.NewStyle().Bold(true)
	bad   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func renderStatus(w io.Writer, st kyo.Status) error {
	link := "online"
	if !st.Communicating {
		link = bad.Render("offline")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", title.Render(st.Model.String()), st.Firmware, link)
	if st.Siren {
		fmt.Fprintln(&b, bad.Render("siren active"))
	}
	if st.Warnings.Any() {
		fmt.Fprintf(&b, "warnings: %+v\n", st.Warnings)
	}
	if st.Tampers.Any() {
		fmt.Fprintf(&b, "tampers: %+v\n", st.Tampers)
	}

	parts := newTable("partition", "armed", "alarm")
	for _, p := range st.Partitions {
		parts.Row(strconv.Itoa(p.Number), armedAs(p), yesNo(p.Alarm))
	}
	fmt.Fprintln(&b, parts.Render())

	zones := newTable("zone", "open", "tamper", "bypass", "alarm mem", "tamper mem")
	for _, z := range st.Zones {
		zones.Row(
			strconv.Itoa(z.Number),
			yesNo(z.Open),
			yesNo(z.Tamper),
			yesNo(z.Bypassed),
			yesNo(z.AlarmMemory),
			yesNo(z.TamperMemory),
		)
	}
	fmt.Fprintln(&b, zones.Render())

	if len(st.Outputs) > 0 {
		outputs := newTable("output", "active")
		for _, o := range st.Outputs {
			outputs.Row(strconv.Itoa(o.Number), yesNo(o.Active))
		}
		fmt.Fprintln(&b, outputs.Render())
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func armedAs(p kyo.Partition) string {
	switch {
	case p.ArmedTotal:
		return "total"
	case p.ArmedPartial:
		return "partial"
	case p.ArmedPartialDelay0:
		return "partial delay 0"
	default:
		return "-"
	}
}

func renderConfig(w io.Writer, cfg kyo.PanelConfig) error {
	var b strings.Builder

	zones := newTable("zone", "name", "type", "areas", "enrolled", "serial")
	for _, z := range cfg.Zones {
		areas := make([]string, 0, len(z.Areas))
		for _, a := range z.Areas {
			areas = append(areas, strconv.Itoa(a))
		}
		zones.Row(
			strconv.Itoa(z.Number),
			z.Name,
			z.Type.String(),
			strings.Join(areas, ", "),
			yesNo(z.Enrolled),
			z.Serial,
		)
	}
	fmt.Fprintln(&b, zones.Render())

	outputs := newTable("output", "name")
	for i, name := range cfg.Outputs {
		outputs.Row(strconv.Itoa(i+1), name)
	}
	fmt.Fprintln(&b, outputs.Render())

	timers := newTable("partition", "entry delay", "exit delay", "siren timer")
	for _, p := range cfg.Partitions {
		timers.Row(
			strconv.Itoa(p.Number),
			fmt.Sprintf("%ds", p.EntryDelay),
			fmt.Sprintf("%ds", p.ExitDelay),
			strconv.Itoa(p.SirenTimer),
		)
	}
	fmt.Fprintln(&b, timers.Render())

	keyfobs := newTable("keyfob", "name", "serial")
	for _, k := range cfg.Keyfobs {
		keyfobs.Row(strconv.Itoa(k.Number), k.Name, k.Serial)
	}
	fmt.Fprintln(&b, keyfobs.Render())

	_, err := io.WriteString(w, b.String())
	return err
}
