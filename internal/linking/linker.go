// Package linking associates imported incident tickets with portfolio
// applications by configuration item name.
package linking

import (
	"context"
	"fmt"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/directory"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// Store is the persistence surface the linker needs.
type Store interface {
	ListApplications(ctx context.Context) ([]models.Application, error)
	ListIncidents(ctx context.Context) ([]models.LinkedIncident, error)
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	UpdateIncidentLink(ctx context.Context, incidentID int64, linked *models.LinkedIncident) error
}

// Summary reports the outcome of one linking pass.
type Summary struct {
	Linked           int `json:"linked"`
	NoMatch          int `json:"no_match"`
	MissingReference int `json:"missing_reference"`
	Skipped          int `json:"skipped"`
}

// Linker resolves incident configuration items against the application
// inventory, with a configured alias table for names that drift between
// the ticket system and the portfolio.
type Linker struct {
	store   Store
	logger  logger.Logger
	aliases map[string]string
}

// NewLinker creates a Linker. aliases maps a configuration item spelling
// to the canonical application name it should resolve to; keys are
// normalized here so config entries match however they were written.
func NewLinker(store Store, aliases map[string]string, log logger.Logger) *Linker {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	normalized := make(map[string]string, len(aliases))
	for alias, canonical := range aliases {
		if key := directory.Normalize(alias); key != "" {
			normalized[key] = canonical
		}
	}

	return &Linker{
		store:   store,
		logger:  log,
		aliases: normalized,
	}
}

// appIndex maps normalized application names to inventory rows.
type appIndex map[string]*models.Application

func (l *Linker) buildIndex(apps []models.Application) appIndex {
	index := make(appIndex, len(apps))
	for i := range apps {
		app := &apps[i]
		if key := directory.Normalize(app.Name); key != "" {
			index[key] = app
		}
	}
	return index
}

// Classify resolves a single incident against the index without touching
// storage. Manual links are never overwritten; callers must check
// ManuallyLinked before calling.
func (l *Linker) classify(incident *models.LinkedIncident, index appIndex, now time.Time) {
	ci := directory.Normalize(incident.Incident.ConfigurationItem)

	if ci == "" {
		incident.Status = models.LinkStatusMissingReference
		incident.ApplicationID = nil
		incident.ApplicationName = ""
		incident.StatusNotes = "ticket has no configuration item"
		incident.LinkedAt = now
		return
	}

	if app, ok := index[ci]; ok {
		l.attach(incident, app, now)
		return
	}

	// Alias table: a known alternate spelling maps to a canonical name.
	if canonical, ok := l.aliases[ci]; ok {
		if app, ok := index[directory.Normalize(canonical)]; ok {
			l.attach(incident, app, now)
			return
		}
		l.logger.Warn("Application alias points at unknown application",
			"alias", incident.Incident.ConfigurationItem,
			"canonical", canonical,
		)
	}

	incident.Status = models.LinkStatusNoMatch
	incident.ApplicationID = nil
	incident.ApplicationName = ""
	incident.StatusNotes = fmt.Sprintf("no application matches configuration item %q", incident.Incident.ConfigurationItem)
	incident.LinkedAt = now
}

func (l *Linker) attach(incident *models.LinkedIncident, app *models.Application, now time.Time) {
	id := app.ID
	incident.Status = models.LinkStatusLinked
	incident.ApplicationID = &id
	incident.ApplicationName = app.Name
	incident.StatusNotes = ""
	incident.LinkedAt = now
}

// LinkAll runs a full linking pass over every stored incident. Incidents
// that were linked by hand keep their assignment; everything else is
// re-derived from the current inventory and alias table, so a NoMatch
// ticket heals itself once the missing application is registered.
func (l *Linker) LinkAll(ctx context.Context, now time.Time) (*Summary, error) {
	apps, err := l.store.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading applications: %w", err)
	}
	index := l.buildIndex(apps)

	incidents, err := l.store.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading incidents: %w", err)
	}

	summary := &Summary{}
	for i := range incidents {
		incident := &incidents[i]

		if incident.ManuallyLinked() {
			summary.Skipped++
			continue
		}

		l.classify(incident, index, now)

		if err := l.store.UpdateIncidentLink(ctx, incident.Incident.ID, incident); err != nil {
			return summary, fmt.Errorf("updating link for ticket %s: %w", incident.Incident.TicketNumber, err)
		}

		switch incident.Status {
		case models.LinkStatusLinked:
			summary.Linked++
		case models.LinkStatusNoMatch:
			summary.NoMatch++
		case models.LinkStatusMissingReference:
			summary.MissingReference++
		}
	}

	l.logger.Info("Linking pass complete",
		"linked", summary.Linked,
		"no_match", summary.NoMatch,
		"missing_reference", summary.MissingReference,
		"skipped", summary.Skipped,
	)

	return summary, nil
}

// ManualLink pins an incident to an application. The assignment survives
// later automated passes until it is explicitly cleared.
func (l *Linker) ManualLink(ctx context.Context, incident *models.LinkedIncident, applicationID int64, now time.Time) error {
	app, err := l.store.GetApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("resolving application %d: %w", applicationID, err)
	}

	incident.Status = models.LinkStatusManuallyLinked
	incident.ApplicationID = &app.ID
	incident.ApplicationName = app.Name
	incident.StatusNotes = "linked manually"
	incident.LinkedAt = now

	if err := l.store.UpdateIncidentLink(ctx, incident.Incident.ID, incident); err != nil {
		return fmt.Errorf("saving manual link for ticket %s: %w", incident.Incident.TicketNumber, err)
	}

	l.logger.Info("Incident linked manually",
		"ticket", incident.Incident.TicketNumber,
		"application", app.Name,
	)
	return nil
}

// ClearManualLink releases a manual assignment so the next automated pass
// can reclassify the incident.
func (l *Linker) ClearManualLink(ctx context.Context, incident *models.LinkedIncident, now time.Time) error {
	if !incident.ManuallyLinked() {
		return fmt.Errorf("ticket %s is not manually linked", incident.Incident.TicketNumber)
	}

	apps, err := l.store.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("loading applications: %w", err)
	}

	l.classify(incident, l.buildIndex(apps), now)
	if err := l.store.UpdateIncidentLink(ctx, incident.Incident.ID, incident); err != nil {
		return fmt.Errorf("saving link for ticket %s: %w", incident.Incident.TicketNumber, err)
	}
	return nil
}
