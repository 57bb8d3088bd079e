package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	kyo "github.com/caarlos0/homekit-kyo"
	"github.com/spf13/cobra"
)

func statusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print zones, partitions, warnings and outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				return renderStatus(cmd.OutOrStdout(), cli.Status())
			})
		},
	}
}

func configCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Read and print the panel configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.session(cmd.Context(), func(ctx context.Context, cli *kyo.Client) error {
				log.Info("reading configuration, this can take a while")
				if err := waitFor(ctx, cli.ConfigLoaded); err != nil {
					return fmt.Errorf("configuration not loaded: %w", err)
				}
				return renderConfig(cmd.OutOrStdout(), cli.PanelConfig())
			})
		},
	}
}

func armCmd(o *options) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "arm PARTITION|all",
		Short: "Arm a partition, keeping the others as they are",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseArmType(mode)
			if err != nil {
				return err
			}
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				if args[0] == "all" {
					return cli.ArmAll(t)
				}
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid partition %q: %w", args[0], err)
				}
				return cli.ArmPartition(p, t)
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "total", "Arm mode: total, partial or delay0")
	return cmd
}

func disarmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disarm PARTITION|all",
		Short: "Disarm a partition, keeping the others as they are",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				if args[0] == "all" {
					return cli.DisarmAll()
				}
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid partition %q: %w", args[0], err)
				}
				return cli.DisarmPartition(p)
			})
		},
	}
}

func resetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset alarm and tamper memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				return cli.ResetAlarms()
			})
		},
	}
}

func outputCmd(o *options) *cobra.Command {
	var pulse time.Duration
	cmd := &cobra.Command{
		Use:       "output on|off|pulse OUTPUT",
		Short:     "Control a panel output",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off", "pulse"},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid output %q: %w", args[1], err)
			}
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				switch args[0] {
				case "on":
					return cli.ActivateOutput(n)
				case "off":
					return cli.DeactivateOutput(n)
				case "pulse":
					return cli.PulseOutput(n, pulse)
				default:
					return fmt.Errorf("invalid action %q", args[0])
				}
			})
		},
	}
	cmd.Flags().DurationVar(&pulse, "duration", time.Second, "How long a pulse lasts")
	return cmd
}

func zoneCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:       "zone include|exclude ZONE",
		Short:     "Include or bypass a zone",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"include", "exclude"},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid zone %q: %w", args[1], err)
			}
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				switch args[0] {
				case "include":
					return cli.IncludeZone(n)
				case "exclude", "bypass":
					return cli.ExcludeZone(n)
				default:
					return fmt.Errorf("invalid action %q", args[0])
				}
			})
		},
	}
}

func dateTimeCmd(o *options) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "datetime",
		Short: "Set the panel clock, to the local time by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := time.Now()
			if at != "" {
				var err error
				t, err = time.ParseInLocation("2006-01-02 15:04:05", at, time.Local)
				if err != nil {
					return fmt.Errorf("invalid time %q: %w", at, err)
				}
			}
			return o.session(cmd.Context(), func(_ context.Context, cli *kyo.Client) error {
				return cli.SetDateTime(t)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `Time to set, as "2006-01-02 15:04:05"`)
	return cmd
}

func parseArmType(s string) (kyo.ArmType, error) {
	switch strings.ToLower(s) {
	case "total", "away":
		return kyo.ArmTotal, nil
	case "partial", "stay":
		return kyo.ArmPartial, nil
	case "delay0", "night":
		return kyo.ArmPartialDelay0, nil
	default:
		return 0, fmt.Errorf("invalid arm mode %q", s)
	}
}
