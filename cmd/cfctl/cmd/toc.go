package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tocCmd = &cobra.Command{
	Use:   "toc",
	Short: "Browse the vehicle's log and parameter tables",
}

var tocLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List the logging table of contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		if err := cf.RequestLogTOC(cmd.Context()); err != nil {
			return err
		}
		for _, e := range cf.LogTOC() {
			fmt.Printf("%3d  %-8s %s.%s\n", e.ID, e.Type, e.Group, e.Name)
		}
		return nil
	},
}

var tocParamCmd = &cobra.Command{
	Use:   "param",
	Short: "List the parameter table of contents with current values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		if err := cf.RequestParamTOC(cmd.Context()); err != nil {
			return err
		}
		for _, e := range cf.ParamTOC() {
			mode := "rw"
			if e.ReadOnly {
				mode = "ro"
			}
			value := "?"
			if v, ok := cf.Param(e.ID); ok {
				value = v.String()
			}
			fmt.Printf("%3d  %-8s %s  %-32s %s\n", e.ID, e.Type, mode, e.Group+"."+e.Name, value)
		}
		return nil
	},
}

func init() {
	tocCmd.AddCommand(tocLogCmd)
	tocCmd.AddCommand(tocParamCmd)
	rootCmd.AddCommand(tocCmd)
}
