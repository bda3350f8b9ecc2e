package cmd

import (
	"fmt"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crazyflie"
	"github.com/spf13/cobra"
)

var (
	fleetHeight   float32
	fleetDuration time.Duration
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Send broadcast commands to every vehicle on a shared channel",
}

var fleetTakeoffCmd = &cobra.Command{
	Use:   "takeoff",
	Short: "Broadcast a takeoff command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := broadcaster()
		if err != nil {
			return err
		}
		return b.Takeoff(cmd.Context(), fleetHeight, durationMs(fleetDuration))
	},
}

var fleetLandCmd = &cobra.Command{
	Use:   "land",
	Short: "Broadcast a land command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := broadcaster()
		if err != nil {
			return err
		}
		return b.Land(cmd.Context(), fleetHeight, durationMs(fleetDuration))
	},
}

var fleetStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Broadcast a trajectory start",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := broadcaster()
		if err != nil {
			return err
		}
		return b.TrajectoryStart(cmd.Context())
	},
}

// broadcaster opens the fleet broadcast link: --uri wins, otherwise the
// config's broadcastUri.
func broadcaster() (*crazyflie.Broadcaster, error) {
	uri := uriFlag
	if uri == "" {
		uri = fleet.BroadcastURI
	}
	if uri == "" {
		return nil, fmt.Errorf("no broadcast link: pass --uri or set broadcastUri in the config file")
	}
	return crazyflie.NewBroadcaster(pool, uri, cliLog)
}

func init() {
	fleetCmd.PersistentFlags().Float32Var(&fleetHeight, "height", 0.5, "target height in meters")
	fleetCmd.PersistentFlags().DurationVar(&fleetDuration, "duration", 2*time.Second, "maneuver duration")
	fleetCmd.AddCommand(fleetTakeoffCmd)
	fleetCmd.AddCommand(fleetLandCmd)
	fleetCmd.AddCommand(fleetStartCmd)
	rootCmd.AddCommand(fleetCmd)
}
