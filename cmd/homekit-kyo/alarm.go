package main

import (
	"errors"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	kyo "github.com/caarlos0/homekit-kyo"
)

type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem
	Tampered       *characteristic.StatusTampered
	Fault          *characteristic.StatusFault

	cfg Config
	cli *kyo.Client
}

func NewSecuritySystem(info accessory.Info, cfg Config, cli *kyo.Client) *SecuritySystem {
	a := &SecuritySystem{
		cfg: cfg,
		cli: cli,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	a.Tampered = characteristic.NewStatusTampered()
	a.SecuritySystem.AddC(a.Tampered.C)

	a.Fault = characteristic.NewStatusFault()
	a.SecuritySystem.AddC(a.Fault.C)

	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

func (a *SecuritySystem) Update(status kyo.Status) {
	state := a.cfg.getAlarmState(status)
	armStateGauge.Set(float64(state))
	if a.SecuritySystem.SecuritySystemCurrentState.Value() != state {
		err := a.SecuritySystem.SecuritySystemCurrentState.SetValue(state)
		log.Info("set current state", "state", state, "err", err)
	}

	if v := boolAs[int](status.Tampers.Any()); a.Tampered.Value() != v {
		_ = a.Tampered.SetValue(v)
		log.Info("alarm status", "tamper", status.Tampers)
	}

	// a panel we cannot talk to is shown as faulty too.
	fault := status.Warnings.Any() || !status.Communicating
	if v := boolAs[int](fault); a.Fault.Value() != v {
		_ = a.Fault.SetValue(v)
		log.Info("alarm status", "warnings", status.Warnings, "communicating", status.Communicating)
	}
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	_ *http.Request,
) (response interface{}, code int) {
	target, ok := v.(int)
	if !ok {
		return nil, hap.JsonStatusInvalidValueInRequest
	}
	if err := a.setTarget(target); err != nil {
		log.Error("could not change alarm state", "target", target, "err", err)
		if errors.Is(err, kyo.ErrQueueFull) {
			return nil, hap.JsonStatusResourceBusy
		}
		return nil, hap.JsonStatusResourceDoesNotExist
	}
	return nil, hap.JsonStatusSuccess
}

// setTarget writes the whole arming state at once, so switching between
// armed modes needs no intermediate disarm.
func (a *SecuritySystem) setTarget(target int) error {
	total, partial, delay0, err := a.cfg.presetMasks(a.cli.Status(), target)
	if err != nil {
		return err
	}
	log.Info("set target state", "state", target, "partitions", a.cfg.Partitions)
	return a.cli.ArmPreset(total, partial, delay0)
}
