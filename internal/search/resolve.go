package search

import (
	"context"
	"fmt"

	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
)

// resolveLocations builds the effective search set: configured
// locations plus ad hoc locations that pass access validation. Ad hoc
// failures drop the location with a diagnostics note; the search never
// aborts because one ad hoc location was bad. Resolution hard-fails
// only when nothing usable remains.
func (o *Orchestrator) resolveLocations(ctx context.Context, adHoc []string) ([]string, []string, error) {
	var notes []string
	seen := make(map[string]bool)
	effective := make([]string, 0, len(o.cfg.Locations)+len(adHoc))

	for _, loc := range o.cfg.Locations {
		if _, ok := o.registry.EngineFor(loc); !ok {
			o.logger.Warn("no engine for configured location", "location", loc)
			notes = append(notes, fmt.Sprintf("no engine handles configured location %s", loc))
			continue
		}
		if !seen[loc] {
			seen[loc] = true
			effective = append(effective, loc)
		}
	}

	for _, loc := range adHoc {
		if seen[loc] {
			continue
		}
		engine, ok := o.registry.EngineFor(loc)
		if !ok {
			notes = append(notes, fmt.Sprintf("no engine handles ad hoc location %s", loc))
			continue
		}
		if err := o.validateAdHoc(ctx, engine, loc); err != nil {
			o.logger.Warn("dropping ad hoc location",
				"location", loc,
				"error", err)
			o.metrics.RecordBackendError(engine.Name(), string(searcherrors.GetCode(err)))
			notes = append(notes, fmt.Sprintf("ad hoc location %s dropped: %v", loc, err))
			continue
		}
		seen[loc] = true
		effective = append(effective, loc)
	}

	if len(effective) == 0 {
		return nil, notes, searcherrors.New(searcherrors.ErrCodeNoUsableLocations,
			"no usable storage locations after resolution").
			WithComponent("orchestrator").
			WithOperation("resolveLocations")
	}
	return effective, notes, nil
}

// validateAdHoc probes current access to an ad hoc location. Engines
// that cannot validate access accept the location as-is.
func (o *Orchestrator) validateAdHoc(ctx context.Context, engine storage.Engine, location string) error {
	validator, ok := engine.(storage.AccessValidator)
	if !ok {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()
	return validator.ValidateAccess(probeCtx, location)
}
