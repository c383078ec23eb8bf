package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/updrift/updrift/scheduler"
	"github.com/updrift/updrift/settings"
	"github.com/updrift/updrift/updater"
	"github.com/updrift/updrift/util"
	"github.com/updrift/updrift/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the update scheduler in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		SetFlagsFromEnvVars(rootCmd)

		if err := util.InitLog(logLevel, logFile); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		SetupCloseHandler(ctx, cancel)

		store, err := settings.Load(configPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warnf("failed to close settings store: %v", err)
			}
		}()

		if err := store.Watch(ctx); err != nil {
			// keep running, settings changes just require a restart
			log.Warnf("live settings reload unavailable: %v", err)
		}

		checker, err := updater.NewChecker(store, scheduler.NewDefaultScheduler(), updater.NewHTTPFetcher(), version.Version())
		if err != nil {
			return err
		}
		defer checker.Close()

		checker.SetOnUpdateListener(func(hasNewVersion bool) {
			if !hasNewVersion {
				log.Infof("update check completed, no newer version than %s", version.Version())
				return
			}
			res := checker.LastResult()
			log.Infof("version %s is available, download page: %s", res.AvailableVersion, res.DownloadPage)
		})

		log.Infof("updrift %s watching %q", version.Version(), store.ManifestLocation())
		<-ctx.Done()
		return nil
	},
}
