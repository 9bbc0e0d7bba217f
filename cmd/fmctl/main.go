package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougsko/fmd/pkg/client"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fmctl",
	Short: "control the fmd FM receiver daemon",
	Long: `fmctl talks to a running fmd over its Unix socket.

Frequencies are given in MHz, for example "fmctl tune 98.1".`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("socket", "/tmp/fmd.sock", "fmd Unix socket path")
	flags.Duration("timeout", client.DefaultTimeout, "per-command deadline")
	flags.Bool("json", false, "print raw JSON responses")
}

// newClient builds a socket client from the persistent flags
func newClient(cmd *cobra.Command) (*client.SocketClient, error) {
	socketPath, err := cmd.Flags().GetString("socket")
	if err != nil {
		return nil, err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	c := client.NewSocketClient(socketPath)
	c.SetTimeout(timeout)
	return c, nil
}

// printResult prints v as JSON with --json, otherwise the text line
func printResult(cmd *cobra.Command, v interface{}, text string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if asJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// parseMHz converts "98.1" to 98100 kHz
func parseMHz(s string) (int64, error) {
	mhz, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || mhz <= 0 || math.IsInf(mhz, 0) {
		return 0, fmt.Errorf("invalid frequency %q, expected MHz such as 98.1", s)
	}
	return int64(math.Round(mhz * 1000)), nil
}

// parseOnOff accepts on/off style switches
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func formatMHz(khz int64) string {
	return fmt.Sprintf("%.2f MHz", float64(khz)/1000)
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}
