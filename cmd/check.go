package cmd

import (
	"github.com/spf13/cobra"

	"github.com/updrift/updrift/scheduler"
	"github.com/updrift/updrift/settings"
	"github.com/updrift/updrift/updater"
	"github.com/updrift/updrift/util"
	"github.com/updrift/updrift/version"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check for a newer version once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		SetFlagsFromEnvVars(rootCmd)

		if err := util.InitLog(logLevel, "console"); err != nil {
			return err
		}

		store, err := settings.Load(configPath)
		if err != nil {
			return err
		}

		if store.ManifestLocation() == "" {
			cmd.Println("no update available: no manifest location configured, see `updrift set --location`")
			return nil
		}

		checker, err := updater.NewChecker(store, scheduler.NewDefaultScheduler(), updater.NewHTTPFetcher(), version.Version())
		if err != nil {
			return err
		}
		defer checker.Close()

		if !checker.CheckNow() {
			cmd.Println("no update available")
			return nil
		}

		res := checker.LastResult()
		cmd.Printf("update available: %s (running %s)\n", res.AvailableVersion, version.Version())
		if res.DownloadPage != "" {
			cmd.Printf("download page: %s\n", res.DownloadPage)
		}
		if res.InstallerURL != "" {
			cmd.Printf("installer: %s\n", res.InstallerURL)
		}
		if res.HistoryURL != "" {
			cmd.Printf("changelog: %s\n", res.HistoryURL)
		}
		return nil
	},
}
