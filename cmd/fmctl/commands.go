package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougsko/fmd/pkg/auth"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show receiver and daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		status, err := c.GetStatus()
		if err != nil {
			return err
		}

		r := status.Radio
		var b strings.Builder
		fmt.Fprintf(&b, "state:     %s\n", r.State)
		if r.Frequency > 0 {
			fmt.Fprintf(&b, "frequency: %s\n", formatMHz(r.Frequency))
		}
		fmt.Fprintf(&b, "band:      %s (%d kHz spacing, %d us emphasis)\n", r.Band, r.Spacing, r.Emphasis)
		fmt.Fprintf(&b, "rds:       %t (af %t, supported %t)\n", r.RDSEnabled, r.AFEnabled, r.RDSSupported)
		fmt.Fprintf(&b, "stereo:    %t\n", r.Stereo)
		fmt.Fprintf(&b, "driver:    %s %s\n", status.Driver, status.Device)
		fmt.Fprintf(&b, "version:   %s, up %s", status.Version, status.Uptime)
		return printResult(cmd, status, b.String())
	},
}

var onCmd = &cobra.Command{
	Use:   "on [MHz]",
	Short: "power the receiver up",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var khz int64
		if len(args) == 1 {
			var err error
			if khz, err = parseMHz(args[0]); err != nil {
				return err
			}
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.PowerUp(khz); err != nil {
			return err
		}
		khz, err = c.Channel()
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]interface{}{"state": "ON", "frequency_khz": khz}, "on at "+formatMHz(khz))
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "power the receiver down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.PowerDown(); err != nil {
			return err
		}
		return printResult(cmd, map[string]string{"state": "OFF"}, "off")
	},
}

var tuneCmd = &cobra.Command{
	Use:   "tune MHz",
	Short: "tune to a frequency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		khz, err := parseMHz(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Tune(khz); err != nil {
			return err
		}
		return printResult(cmd, map[string]int64{"frequency_khz": khz}, "tuned to "+formatMHz(khz))
	},
}

var seekCmd = &cobra.Command{
	Use:       "seek up|down",
	Short:     "seek to the next station",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := strings.ToLower(args[0])
		if dir != "up" && dir != "down" {
			return fmt.Errorf("expected up or down, got %q", args[0])
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		khz, err := c.Seek(dir)
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]int64{"frequency_khz": khz}, "found "+formatMHz(khz))
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "scan the band for strong stations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		started := time.Now()
		stations, err := c.Scan()
		if err != nil {
			return err
		}

		lines := make([]string, 0, len(stations)+1)
		lines = append(lines, fmt.Sprintf("%d station(s) in %s", len(stations), formatElapsed(time.Since(started))))
		for _, khz := range stations {
			lines = append(lines, "  "+formatMHz(khz))
		}
		return printResult(cmd, map[string]interface{}{"stations": stations}, strings.Join(lines, "\n"))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "abort a running seek or scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Stop(); err != nil {
			return err
		}
		return printResult(cmd, map[string]bool{"stopped": true}, "stop requested")
	},
}

// switchCommand builds an on|off subcommand around set
func switchCommand(use, short string, set func(c clientSwitcher, on bool) error) *cobra.Command {
	return &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := set(c, on); err != nil {
				return err
			}
			state := "off"
			if on {
				state = "on"
			}
			return printResult(cmd, map[string]bool{"enabled": on}, use+" "+state)
		},
	}
}

// clientSwitcher is the part of the socket client the switch commands use
type clientSwitcher interface {
	SetRDS(on bool) error
	SetAF(on bool) error
	SetMute(on bool) error
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "list stored stations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		favorites, err := cmd.Flags().GetBool("favorites")
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		stations, err := c.GetStations(limit, favorites)
		if err != nil {
			return err
		}

		var b strings.Builder
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FREQUENCY\tNAME\tFAV\tSEEN\tLAST SEEN")
		for _, s := range stations {
			fav := ""
			if s.Favorite {
				fav = "*"
			}
			lastSeen := "-"
			if !s.LastSeen.IsZero() {
				lastSeen = s.LastSeen.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", formatMHz(s.Frequency), s.Name, fav, s.SeenCount, lastSeen)
		}
		w.Flush()
		return printResult(cmd, stations, strings.TrimRight(b.String(), "\n"))
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite MHz [name]",
	Short: "bookmark a station",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		khz, err := parseMHz(args[0])
		if err != nil {
			return err
		}
		remove, err := cmd.Flags().GetBool("remove")
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.SetFavorite(khz, name, !remove); err != nil {
			return err
		}
		text := "bookmarked " + formatMHz(khz)
		if remove {
			text = "removed bookmark " + formatMHz(khz)
		}
		return printResult(cmd, map[string]interface{}{"frequency_khz": khz, "favorite": !remove}, text)
	},
}

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "show the signal monitor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		snap, err := c.Signal()
		if err != nil {
			return err
		}
		text := fmt.Sprintf("rssi %d (mean %.1f, peak %d, min %d, std dev %.1f over %d samples)",
			snap.Current, snap.Mean, snap.Peak, snap.Min, snap.StdDev, snap.Samples)
		return printResult(cmd, snap, text)
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw COMMAND",
	Short: "send a raw protocol command, e.g. \"BAND:japan\"",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		resp, err := c.SendCommand(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.String())
		if !resp.Success {
			return fmt.Errorf("%s", resp.Error)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "issue a bearer token for the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		secret, err := flags.GetString("secret")
		if err != nil {
			return err
		}
		subject, err := flags.GetString("subject")
		if err != nil {
			return err
		}
		roles, err := flags.GetStringSlice("role")
		if err != nil {
			return err
		}
		ttl, err := flags.GetDuration("ttl")
		if err != nil {
			return err
		}

		v, err := auth.NewVerifier(secret)
		if err != nil {
			return err
		}
		token, err := v.Issue(subject, roles, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	stationsCmd.Flags().Int("limit", 0, "maximum stations to list (0 for all)")
	stationsCmd.Flags().Bool("favorites", false, "list favorites only")

	favoriteCmd.Flags().Bool("remove", false, "remove the bookmark")

	tokenCmd.Flags().String("secret", "", "api.jwt_secret of the daemon")
	tokenCmd.Flags().String("subject", "fmctl", "token subject")
	tokenCmd.Flags().StringSlice("role", []string{auth.RoleController}, "granted roles")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	tokenCmd.MarkFlagRequired("secret")

	rootCmd.AddCommand(
		statusCmd,
		onCmd,
		offCmd,
		tuneCmd,
		seekCmd,
		scanCmd,
		stopCmd,
		switchCommand("rds", "enable or disable RDS", func(c clientSwitcher, on bool) error { return c.SetRDS(on) }),
		switchCommand("af", "enable or disable alternate frequency jumps", func(c clientSwitcher, on bool) error { return c.SetAF(on) }),
		switchCommand("mute", "mute or unmute audio", func(c clientSwitcher, on bool) error { return c.SetMute(on) }),
		stationsCmd,
		favoriteCmd,
		signalCmd,
		rawCmd,
		tokenCmd,
	)
}
