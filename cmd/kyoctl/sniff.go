package main

import (
	"fmt"
	"time"

	kyo "github.com/caarlos0/homekit-kyo"
	"github.com/caarlos0/sync/cio"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

// sniffCmd prints every burst of bytes seen on the line, split on silence.
// It never writes, so it can run next to a keypad or another master.
func sniffCmd(o *options) *cobra.Command {
	gap := 10 * time.Millisecond
	stall := 5 * time.Second
	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Print the frames seen on the serial line without sending anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parity, err := kyo.ParseParity(o.parity)
			if err != nil {
				return err
			}
			port, err := serial.Open(o.device, &serial.Mode{
				BaudRate: o.baud,
				DataBits: 8,
				Parity:   parity,
				StopBits: serial.OneStopBit,
			})
			if err != nil {
				return fmt.Errorf("could not open %s: %w", o.device, err)
			}
			defer port.Close()
			if err := port.SetReadTimeout(gap); err != nil {
				return fmt.Errorf("could not set read timeout: %w", err)
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			// the port returns empty reads on every gap, so a read that does
			// not return at all means the driver is stuck.
			r := cio.TimeoutReader(port, stall)
			buf := make([]byte, 64)
			var frame []byte
			var started time.Time
			for ctx.Err() == nil {
				n, err := r.Read(buf)
				if err != nil {
					return fmt.Errorf("serial read: %w", err)
				}
				if n > 0 {
					if len(frame) == 0 {
						started = time.Now()
					}
					frame = append(frame, buf[:n]...)
					continue
				}
				if len(frame) > 0 {
					fmt.Fprintf(out, "%s %3d  % X\n", started.Format("15:04:05.000"), len(frame), frame)
					frame = frame[:0]
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&gap, "gap", gap, "Silence that ends a frame")
	cmd.Flags().DurationVar(&stall, "stall", stall, "Fail when a read blocks for this long")
	return cmd
}
