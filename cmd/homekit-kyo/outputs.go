package main

import (
	"fmt"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	kyo "github.com/caarlos0/homekit-kyo"
)

type Output struct {
	*accessory.Switch
	Number int
}

func (output *Output) Update(status kyo.Status) {
	if output.Number > len(status.Outputs) {
		return
	}
	active := status.Outputs[output.Number-1].Active
	if output.Switch.Switch.On.Value() == active {
		return
	}
	output.Switch.Switch.On.SetValue(active)
	log.Info("output", "output", output.Number, "active", active)
}

func outputName(panel kyo.PanelConfig, n int) string {
	if n <= len(panel.Outputs) {
		if name := panel.Outputs[n-1]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("Output %d", n)
}

func setupOutputs(cli *kyo.Client, cfg Config, status kyo.Status, panel kyo.PanelConfig) []*Output {
	var outputs []*Output
	for _, number := range cfg.Outputs {
		a := &Output{
			Number: number,
			Switch: accessory.NewSwitch(accessory.Info{
				Name:         outputName(panel, number),
				Manufacturer: manufacturer,
			}),
		}
		a.Id = uint64(200 + number)
		a.Switch.Switch.On.SetValueRequestFunc = func(value interface{}, _ *http.Request) (response interface{}, code int) {
			v := value.(bool)
			var err error
			if v {
				err = cli.ActivateOutput(number)
			} else {
				err = cli.DeactivateOutput(number)
			}
			if err != nil {
				log.Error("failed to set output", "output", number, "value", v, "err", err)
				return nil, hap.JsonStatusResourceBusy
			}
			return nil, hap.JsonStatusSuccess
		}
		a.Update(status)
		outputs = append(outputs, a)
	}
	return outputs
}
