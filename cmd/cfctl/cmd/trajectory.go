package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crazyflie"
	"github.com/spf13/cobra"
)

var uploadStart bool

var uploadCmd = &cobra.Command{
	Use:   "upload <trajectory.csv>",
	Short: "Upload a polynomial trajectory to the vehicle",
	Long: `Upload reads a CSV trajectory and uploads it over the link. Each row is
one segment: a duration in seconds followed by 8 polynomial coefficients
for each of x, y, z, and yaw (33 columns total).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		segments, err := readTrajectoryCSV(args[0])
		if err != nil {
			return err
		}
		cf, err := connect()
		if err != nil {
			return err
		}
		if err := cf.UploadTrajectory(cmd.Context(), segments); err != nil {
			return err
		}
		fmt.Printf("uploaded %d segments\n", len(segments))
		if uploadStart {
			return cf.TrajectoryStart(cmd.Context())
		}
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the previously uploaded trajectory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		return cf.TrajectoryStart(cmd.Context())
	},
}

func readTrajectoryCSV(path string) ([]crazyflie.TrajectorySegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	const columns = 1 + 4*crazyflie.PolyDegreeCoeffs
	segments := make([]crazyflie.TrajectorySegment, 0, len(rows))
	for i, row := range rows {
		if len(row) != columns {
			return nil, fmt.Errorf("%s row %d: want %d columns, got %d", path, i+1, columns, len(row))
		}
		values := make([]float32, columns)
		for j, field := range row {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %d: %w", path, i+1, j+1, err)
			}
			values[j] = float32(v)
		}
		var seg crazyflie.TrajectorySegment
		seg.Duration = values[0]
		copy(seg.PolyX[:], values[1:])
		copy(seg.PolyY[:], values[1+crazyflie.PolyDegreeCoeffs:])
		copy(seg.PolyZ[:], values[1+2*crazyflie.PolyDegreeCoeffs:])
		copy(seg.PolyYaw[:], values[1+3*crazyflie.PolyDegreeCoeffs:])
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: empty trajectory", path)
	}
	return segments, nil
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadStart, "start", false, "start the trajectory after uploading")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(startCmd)
}
