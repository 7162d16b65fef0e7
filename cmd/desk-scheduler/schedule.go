package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/schedule"
)

func newScheduleCmd(g *globalOptions) *cobra.Command {
	var at, preset string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the weekly schedule and the current target state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if preset != "" {
				if err := cfg.ApplyPreset(preset); err != nil {
					return err
				}
			}
			days, err := cfg.Days()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			now := clock.FromTime(time.Now().In(loc))
			if at != "" {
				tod, err := clock.ParseTimeOfDay(at)
				if err != nil {
					return err
				}
				now.Time = tod
			}
			printSchedule(cmd.OutOrStdout(), days, now, schedule.DefaultTransitionTolerance)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this time of day today (HH:MM[:SS])")
	cmd.Flags().StringVar(&preset, "preset", "", `Show a preset instead of the configured week`)
	return cmd
}

var (
	dayOnColor  = color.New(color.FgGreen)
	dayOffColor = color.New(color.Faint)
	todayColor  = color.New(color.Bold)
	targetColor = color.New(color.FgCyan, color.Bold)
)

// weekOrder lists days Monday first, as a desk week is read.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func printSchedule(w io.Writer, days [7]schedule.DayConfig, now clock.DateTime, tolerance time.Duration) {
	for _, wd := range weekOrder {
		cfg := days[wd]
		marker := "  "
		if wd == now.Date.Weekday {
			marker = todayColor.Sprint("> ")
		}
		if !cfg.Enabled {
			fmt.Fprintf(w, "%s%-10s %s\n", marker, wd, dayOffColor.Sprint("off"))
			continue
		}
		fmt.Fprintf(w, "%s%-10s %s\n", marker, wd, dayOnColor.Sprintf("%s-%s stand %s every %s",
			cfg.Start, cfg.End,
			time.Duration(cfg.Duration)*time.Second,
			time.Duration(cfg.Interval)*time.Second))
	}
	target := schedule.DetermineState(now.Time, days[now.Date.Weekday], tolerance)
	fmt.Fprintf(w, "\n%s %s: %s\n", now.Date.Weekday, now.Time, targetColor.Sprint(target))
}
