package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/updrift/updrift/settings"
	"github.com/updrift/updrift/util"
)

const (
	locationFlag = "location"
	intervalFlag = "interval"
	enabledFlag  = "enabled"
)

var (
	setLocation string
	setInterval time.Duration
	setEnabled  bool

	setCmd = &cobra.Command{
		Use:   "set",
		Short: "update the scheduler settings",
		Long: "Writes manifest location, poll interval or the enabled flag into the settings file. " +
			"A running scheduler picks the changes up live.",
		RunE: func(cmd *cobra.Command, args []string) error {
			SetFlagsFromEnvVars(rootCmd)

			if err := util.InitLog(logLevel, "console"); err != nil {
				return err
			}

			store, err := settings.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed(locationFlag) {
				if err := store.SetManifestLocation(setLocation); err != nil {
					return err
				}
				cmd.Printf("manifest location set to %q\n", setLocation)
			}

			if cmd.Flags().Changed(intervalFlag) {
				if err := store.SetCheckInterval(setInterval); err != nil {
					return err
				}
				cmd.Printf("check interval set to %s\n", store.CheckInterval())
			}

			if cmd.Flags().Changed(enabledFlag) {
				if err := store.SetEnabled(setEnabled); err != nil {
					return err
				}
				cmd.Printf("automatic checks enabled: %v\n", setEnabled)
			}

			return nil
		},
	}
)

func init() {
	setCmd.Flags().StringVar(&setLocation, locationFlag, "", "manifest URL or local path, empty clears the location")
	setCmd.Flags().DurationVar(&setInterval, intervalFlag, 0, "delay between automatic checks, 0 disables the periodic timer")
	setCmd.Flags().BoolVar(&setEnabled, enabledFlag, true, "enable or disable automatic checks")
}
