package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/serial"
)

var (
	heightColor  = color.New(color.FgCyan)
	postureColor = color.New(color.FgGreen, color.Bold)
	signOffColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var watchFor time.Duration
	var device string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print decoded desk heights",
		Long: `Decode the desk link and print height, posture and sign-off events.
The controller is woken up if it is not reporting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if device != "" {
				cfg.Serial.Device = device
			}
			logger, sync, err := g.newLogger(cfg)
			if err != nil {
				return err
			}
			defer sync()

			hw, err := openHardware(cfg, false)
			if err != nil {
				return err
			}
			defer hw.Close()
			if err := hw.port.Flush(); err != nil {
				logger.Warnw("flush serial input", "error", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			dec := desk.NewDecoder(hw.port, hw.pin, cfg.Desk, logger.Named("desk"))
			return watchEvents(ctx, cmd.OutOrStdout(), hw.port, dec, watchFor)
		},
	}
	cmd.Flags().DurationVar(&watchFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVar(&device, "device", "", "Serial device (overrides config)")
	return cmd
}

// watchEvents decodes r and prints events to w until ctx ends or d elapses.
func watchEvents(ctx context.Context, w io.Writer, r io.Reader, dec *desk.Decoder, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	chunks := make(chan []byte, 16)
	pumpErr := make(chan error, 1)
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go func() {
		pumpErr <- serial.Pump(pumpCtx, r, chunks)
	}()

	ticker := time.NewTicker(loopTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-pumpErr:
			return err
		case chunk := <-chunks:
			for _, ev := range dec.Process(chunk, time.Now()) {
				printEvent(w, ev)
			}
		case t := <-ticker.C:
			for _, ev := range dec.Update(t) {
				printEvent(w, ev)
			}
		}
	}
}

func printEvent(w io.Writer, ev desk.Event) {
	ts := ev.Timestamp.Format("15:04:05.000")
	switch ev.Type {
	case desk.EventHeight:
		heightColor.Fprintf(w, "%s height  %s\n", ts, formatHeight(ev.HeightMM))
	case desk.EventPosture:
		postureColor.Fprintf(w, "%s posture %s at %s\n", ts, ev.Posture, formatHeight(ev.HeightMM))
	case desk.EventSignOff:
		signOffColor.Fprintf(w, "%s sign-off (last %s)\n", ts, formatHeight(ev.HeightMM))
	case desk.EventMalformed:
		errorColor.Fprintf(w, "%s malformed frame\n", ts)
	default:
		fmt.Fprintf(w, "%s %s\n", ts, ev.Type)
	}
}

// formatHeight renders millimetres as the handset shows them.
func formatHeight(mm uint16) string {
	if mm == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d cm", mm/10, mm%10)
}
