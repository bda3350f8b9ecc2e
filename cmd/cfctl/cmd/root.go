package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crazyflie"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/link"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	uriFlag  string
	logLevel string
	timeout  time.Duration

	// Shared state set during PersistentPreRun
	fleet  *FleetConfig
	pool   *link.Pool
	cliLog logger.Logger
)

// rootCmd is the base command for cfctl.
var rootCmd = &cobra.Command{
	Use:   "cfctl",
	Short: "Crazyflie CLI: inspect, fly, and record telemetry from CRTP vehicles",
	Long: `cfctl talks to Crazyflie quadcopters over radio, USB, or a network
bridge. It can browse the logging and parameter tables, read and write
parameters, upload and start trajectories, send fleet-wide broadcast
commands, and record onboard telemetry to a local database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		fleet = DefaultFleetConfig()
		if cfgFile != "" {
			fleet, err = LoadFleetConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		}

		level := fleet.Settings.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		cliLog = logger.NewDefaultLogger(logger.ParseLevel(level))
		pool = link.NewPool(cliLog)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if pool != nil {
		pool.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// vehicleURI resolves the target vehicle for single-vehicle commands:
// the --uri flag wins, otherwise the first vehicle in the fleet config.
func vehicleURI() (string, error) {
	if uriFlag != "" {
		return uriFlag, nil
	}
	if len(fleet.Vehicles) > 0 {
		return fleet.Vehicles[0].URI, nil
	}
	return "", fmt.Errorf("no vehicle: pass --uri or list vehicles in the config file")
}

// connect opens the target vehicle over the shared pool.
func connect() (*crazyflie.Crazyflie, error) {
	uri, err := vehicleURI()
	if err != nil {
		return nil, err
	}
	return crazyflie.New(pool, uri, crazyflie.Config{
		BaseTimeout: timeout,
		Logger:      cliLog,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "fleet config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&uriFlag, "uri", "", "vehicle link URI, e.g. radio://0/80/2M/E7E7E7E7E7")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default \"info\")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Second, "base timeout for request batches")
}
