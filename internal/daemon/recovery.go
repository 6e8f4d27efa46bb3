package daemon

import (
	"context"

	"montage/internal/logging"
)

// runRecovery localizes any external references left behind by a previous
// run. It runs in its own goroutine after startup and its failure never
// prevents the daemon from serving requests.
func (d *Daemon) runRecovery(ctx context.Context) {
	d.logger.Info("starting reference recovery")
	report, err := d.core.Cache.RecoverAll(ctx)
	if err != nil {
		d.logger.Warn("reference recovery aborted", logging.Error(err))
		return
	}
	d.logger.Info("reference recovery finished",
		logging.Int("projects", report.Projects),
		logging.Int("referencesFound", report.ReferencesFound),
		logging.Int("localized", report.Localized),
		logging.Int("failed", report.Failed))
}
