package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/desk-scheduler/internal/desk"
)

func newSendCmd(g *globalOptions) *cobra.Command {
	var watchFor time.Duration
	var device string
	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one command to the desk and exit",
		Long: `Send one command to the desk controller, activating it first if needed.

Commands: ` + commandList() + `
Aliases: STAND (PRESET_3), SIT (PRESET_4), M (MODE).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := desk.ParseCommand(args[0])
			if err != nil {
				return err
			}
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

			dec := desk.NewDecoder(hw.port, hw.pin, cfg.Desk, logger.Named("desk"))
			if err := dec.SendCommand(c); err != nil {
				return fmt.Errorf("send %s: %w", c, err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "sent %s\n", c)

			if watchFor <= 0 {
				return nil
			}
			return watchEvents(cmd.Context(), cmd.OutOrStdout(), hw.port, dec, watchFor)
		},
	}
	cmd.Flags().DurationVar(&watchFor, "watch", 0, "Print heights for this long after sending")
	cmd.Flags().StringVar(&device, "device", "", "Serial device (overrides config)")
	return cmd
}

func commandList() string {
	names := make([]string, 0, len(desk.Commands))
	for _, c := range desk.Commands {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}
