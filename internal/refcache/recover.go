package refcache

import (
	"context"
	"errors"

	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/services"
)

// RecoveryReport aggregates the result of a bulk localization pass.
type RecoveryReport struct {
	Projects        int `json:"projects"`
	Shots           int `json:"shots"`
	ReferencesFound int `json:"referencesFound"`
	Localized       int `json:"localized"`
	Failed          int `json:"failed"`
}

// RecoverAll scans projects for external references left behind by an
// interrupted shutdown and localizes each one. With no ids it covers every
// project. Individual failures are logged and counted, never fatal, so one
// dead upstream cannot block recovery of the rest.
func (c *Cache) RecoverAll(ctx context.Context, projectIDs ...string) (RecoveryReport, error) {
	var report RecoveryReport

	ids := projectIDs
	if len(ids) == 0 {
		listed, err := c.store.List(ctx)
		if err != nil {
			return report, err
		}
		ids = listed
	}

	for _, projectID := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		project, err := c.store.Read(ctx, projectID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			c.logger.Warn("skipping unreadable project during recovery",
				logging.String(logging.FieldProjectID, projectID),
				logging.Error(err))
			report.Failed++
			continue
		}
		report.Projects++

		for _, shot := range project.Shots {
			report.Shots++
			for _, ref := range externalReferences(&shot) {
				report.ReferencesFound++
				name, err := c.Localize(ctx, projectID, shot.ID, ref)
				switch {
				case err != nil:
					report.Failed++
					c.logger.Warn("failed to localize reference during recovery",
						logging.String(logging.FieldEventType, "reference_localize_failed"),
						logging.String(logging.FieldProjectID, projectID),
						logging.String(logging.FieldShotID, shot.ID),
						logging.String("reference", redactRef(ref)),
						logging.String(logging.FieldImpact, "the shot keeps its external reference until the next recovery pass"),
						logging.String(logging.FieldErrorHint, "Check that the reference host is reachable from the daemon"),
						logging.Error(err))
				case name != "":
					report.Localized++
				}
			}
		}
	}

	c.logger.Info("reference recovery complete",
		logging.Int("projects", report.Projects),
		logging.Int("shots", report.Shots),
		logging.Int("found", report.ReferencesFound),
		logging.Int("localized", report.Localized),
		logging.Int("failed", report.Failed))
	return report, nil
}

// externalReferences collects the distinct external references in a shot's
// media fields, preserving first-seen order.
func externalReferences(shot *projectstore.Shot) []string {
	var refs []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		if !IsExternal(ref) {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	for _, img := range shot.GeneratedImages {
		add(img)
	}
	for _, img := range shot.EnhancedImages {
		add(img)
	}
	if shot.VideoFile != nil {
		add(*shot.VideoFile)
	}
	return refs
}
