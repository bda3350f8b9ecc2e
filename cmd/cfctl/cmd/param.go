package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crazyflie"
	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
	"github.com/spf13/cobra"
)

var paramCmd = &cobra.Command{
	Use:   "param",
	Short: "Read and write vehicle parameters",
}

var paramGetCmd = &cobra.Command{
	Use:   "get <group.name>",
	Short: "Read one parameter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		if err := cf.RequestParamTOC(cmd.Context()); err != nil {
			return err
		}
		entry, err := lookupParam(cf, args[0])
		if err != nil {
			return err
		}
		v, ok := cf.Param(entry.ID)
		if !ok {
			return fmt.Errorf("no value for %s", args[0])
		}
		fmt.Println(v.String())
		return nil
	},
}

var paramSetCmd = &cobra.Command{
	Use:   "set <group.name> <value>",
	Short: "Write one parameter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := connect()
		if err != nil {
			return err
		}
		if err := cf.RequestParamTOC(cmd.Context()); err != nil {
			return err
		}
		entry, err := lookupParam(cf, args[0])
		if err != nil {
			return err
		}
		if entry.ReadOnly {
			return fmt.Errorf("%s is read-only", args[0])
		}
		value, err := parseParamValue(entry.Type, args[1])
		if err != nil {
			return err
		}
		return cf.SetParam(cmd.Context(), entry.ID, value)
	},
}

func lookupParam(cf *crazyflie.Crazyflie, qualified string) (crazyflie.ParamTOCEntry, error) {
	group, name, ok := strings.Cut(qualified, ".")
	if !ok {
		return crazyflie.ParamTOCEntry{}, fmt.Errorf("parameter name must be group.name, got %q", qualified)
	}
	entry, ok := cf.ParamTOCEntryByName(group, name)
	if !ok {
		return crazyflie.ParamTOCEntry{}, fmt.Errorf("unknown parameter %s", qualified)
	}
	return entry, nil
}

// parseParamValue converts a command-line string into a typed value.
func parseParamValue(t crtp.ParamType, s string) (crtp.ParamValue, error) {
	v := crtp.ParamValue{Type: t}
	switch t {
	case crtp.ParamTypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return v, fmt.Errorf("%q is not a float: %w", s, err)
		}
		v.ValueF32 = float32(f)
	case crtp.ParamTypeUint8, crtp.ParamTypeUint16, crtp.ParamTypeUint32:
		bits := 8 * t.Size()
		u, err := strconv.ParseUint(s, 0, bits)
		if err != nil {
			return v, fmt.Errorf("%q is not a uint%d: %w", s, bits, err)
		}
		switch t {
		case crtp.ParamTypeUint8:
			v.ValueU8 = uint8(u)
		case crtp.ParamTypeUint16:
			v.ValueU16 = uint16(u)
		default:
			v.ValueU32 = uint32(u)
		}
	case crtp.ParamTypeInt8, crtp.ParamTypeInt16, crtp.ParamTypeInt32:
		bits := 8 * t.Size()
		i, err := strconv.ParseInt(s, 0, bits)
		if err != nil {
			return v, fmt.Errorf("%q is not an int%d: %w", s, bits, err)
		}
		switch t {
		case crtp.ParamTypeInt8:
			v.ValueI8 = int8(i)
		case crtp.ParamTypeInt16:
			v.ValueI16 = int16(i)
		default:
			v.ValueI32 = int32(i)
		}
	default:
		return v, fmt.Errorf("unsupported parameter type %d", t)
	}
	return v, nil
}

func init() {
	paramCmd.AddCommand(paramGetCmd)
	paramCmd.AddCommand(paramSetCmd)
	rootCmd.AddCommand(paramCmd)
}
