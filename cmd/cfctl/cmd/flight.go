package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	takeoffHeight   float32
	takeoffDuration time.Duration
	landHeight      float32
	landDuration    time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the vehicle answers on its link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		start := time.Now()
		if err := cf.Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("ack from %s in %v\n", cf.Address(), time.Since(start).Round(time.Microsecond))
		return nil
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the vehicle to firmware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		return cf.Reboot(cmd.Context())
	},
}

var takeoffCmd = &cobra.Command{
	Use:   "takeoff",
	Short: "Take off to a target height",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		return cf.Takeoff(cmd.Context(), takeoffHeight, durationMs(takeoffDuration))
	},
}

var landCmd = &cobra.Command{
	Use:   "land",
	Short: "Land at a target height",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		return cf.Land(cmd.Context(), landHeight, durationMs(landDuration))
	},
}

var hoverCmd = &cobra.Command{
	Use:   "hover <x> <y> <z> <yaw>",
	Short: "Send a single hover setpoint",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var x, y, z, yaw float32
		for i, dst := range []*float32{&x, &y, &z, &yaw} {
			if _, err := fmt.Sscanf(args[i], "%g", dst); err != nil {
				return fmt.Errorf("bad coordinate %q: %w", args[i], err)
			}
		}
		cf, err := connect()
		if err != nil {
			return err
		}
		return cf.Hover(cmd.Context(), x, y, z, yaw)
	},
}

func durationMs(d time.Duration) uint16 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > 65535 {
		return 65535
	}
	return uint16(ms)
}

func init() {
	takeoffCmd.Flags().Float32Var(&takeoffHeight, "height", 0.5, "target height in meters")
	takeoffCmd.Flags().DurationVar(&takeoffDuration, "duration", 2*time.Second, "maneuver duration")
	landCmd.Flags().Float32Var(&landHeight, "height", 0.0, "target height in meters")
	landCmd.Flags().DurationVar(&landDuration, "duration", 2*time.Second, "maneuver duration")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(takeoffCmd)
	rootCmd.AddCommand(landCmd)
	rootCmd.AddCommand(hoverCmd)
}
