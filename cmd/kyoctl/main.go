// Command kyoctl talks to a Bentel KYO panel from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	kyo "github.com/caarlos0/homekit-kyo"
	logp "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "kyoctl",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal("command failed", "err", err)
	}
}

func rootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "kyoctl",
		Short:         "Bentel KYO alarm panel serial tool",
		Version:       version + " (" + commit + ", " + date + ")",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level := logp.WarnLevel
			if o.debug {
				level = logp.DebugLevel
			}
			log.SetLevel(level)
			kyo.SetLogLevel(level)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.device, "device", "d", envOr("KYO_DEVICE", "/dev/ttyUSB0"), "Serial device")
	flags.IntVar(&o.baud, "baud", kyo.DefaultBaudRate, "Baud rate")
	flags.StringVar(&o.parity, "parity", "even", "Parity: none, even or odd")
	flags.DurationVar(&o.timeout, "timeout", 30*time.Second, "Give up after this long")
	flags.BoolVar(&o.debug, "debug", false, "Log every transaction")

	cmd.AddCommand(
		statusCmd(o),
		configCmd(o),
		armCmd(o),
		disarmCmd(o),
		resetCmd(o),
		outputCmd(o),
		zoneCmd(o),
		dateTimeCmd(o),
		sniffCmd(o),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
