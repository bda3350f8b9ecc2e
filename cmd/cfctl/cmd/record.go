package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crazyflie"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	recordDB       string
	recordInterval time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the configured log blocks to a local database",
	Long: `Record creates the log blocks listed in the fleet config on the vehicle,
starts them, and stores every sample in a SQLite database until
interrupted. The link is kept busy with pings so samples drain promptly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(fleet.LogBlocks) == 0 {
			return fmt.Errorf("no log blocks in the config file")
		}
		uri, err := vehicleURI()
		if err != nil {
			return err
		}

		dbPath := recordDB
		if dbPath == "" {
			dbPath = fleet.Storage.Database
		}
		store := telemetry.NewStore(dbPath)
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rec, err := telemetry.NewRecorder(ctx, store, uri, cliLog)
		if err != nil {
			return err
		}

		mgr := crazyflie.NewManager(pool, cliLog)
		defer mgr.Shutdown()
		cf, err := mgr.Add(uri, crazyflie.Config{BaseTimeout: timeout, Logger: cliLog})
		if err != nil {
			return err
		}
		cf.SetLinkQualityCallback(rec.LinkQualityCallback())

		if err := cf.RequestLogTOC(ctx); err != nil {
			return err
		}

		var blocks []*crazyflie.LogBlock
		for _, bc := range fleet.LogBlocks {
			var sample func(timestampMs uint32, values []float64)
			blk, err := cf.AddLogBlock(ctx, bc.Variables, func(ts uint32, values []float64) {
				if sample != nil {
					sample(ts, values)
				}
			})
			if err != nil {
				return fmt.Errorf("log block %q: %w", bc.Topic, err)
			}
			sample = rec.LogCallback(blk.ID())
			if err := blk.Start(ctx, time.Second/time.Duration(bc.Frequency)); err != nil {
				return fmt.Errorf("start log block %q: %w", bc.Topic, err)
			}
			blocks = append(blocks, blk)
			cliLog.Info("recording %q (block %d) at %d Hz", bc.Topic, blk.ID(), bc.Frequency)
		}

		// Drive the link so acks keep flowing.
		if err := mgr.EnableKeepalive(uri, recordInterval); err != nil {
			return err
		}

		<-ctx.Done()
		stop()

		// Best effort teardown on a fresh context: the signal context is gone.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, blk := range blocks {
			if err := blk.Stop(shutdownCtx); err != nil {
				cliLog.Warn("stop block %d: %v", blk.ID(), err)
			}
			if err := blk.Delete(shutdownCtx); err != nil {
				cliLog.Warn("delete block %d: %v", blk.ID(), err)
			}
		}

		n, err := store.SampleCount(shutdownCtx, rec.SessionID())
		if err != nil {
			return err
		}
		fmt.Printf("session %d: %d samples in %s\n", rec.SessionID(), n, dbPath)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordDB, "db", "", "database path (default from config)")
	recordCmd.Flags().DurationVar(&recordInterval, "interval", 10*time.Millisecond, "keepalive ping interval")
	rootCmd.AddCommand(recordCmd)
}
