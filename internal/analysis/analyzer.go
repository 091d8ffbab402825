// Package analysis mines linked incident history for recurring problem
// patterns and turns them into improvement recommendations.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// Store is the persistence surface the analyzer needs.
type Store interface {
	ListIncidents(ctx context.Context) ([]models.LinkedIncident, error)
	ListOpenRecommendations(ctx context.Context) ([]models.IncidentRecommendation, error)
	CreateRecommendation(ctx context.Context, rec *models.IncidentRecommendation) error
	UpdateRecommendation(ctx context.Context, rec *models.IncidentRecommendation) error
}

// Options tunes pattern detection thresholds.
type Options struct {
	RepeatPatternThreshold int
	RecentWindow           time.Duration
	HighVolumeThreshold    int
}

// OptionsFromConfig converts analysis configuration into analyzer options.
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		RepeatPatternThreshold: cfg.RepeatPatternThreshold,
		RecentWindow:           time.Duration(cfg.RecentWindowDays) * 24 * time.Hour,
		HighVolumeThreshold:    cfg.HighVolumeThreshold,
	}
}

// Result summarizes an analysis run.
type Result struct {
	Details   map[int64]models.IncidentScoreDetails `json:"details"`
	Created   int                                   `json:"created"`
	Refreshed int                                   `json:"refreshed"`
	Expired   int                                   `json:"expired"`
}

// Analyzer derives incident score details and recommendations from linked
// incident history. Runs are idempotent: a signal that already produced an
// open recommendation refreshes it in place instead of duplicating it, and
// recommendations whose supporting incidents aged out of the window expire.
type Analyzer struct {
	store  Store
	logger logger.Logger
	opts   Options
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(store Store, opts Options, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Analyzer{store: store, opts: opts, logger: log}
}

// Summarize computes score details for one application's incidents as of
// the given time. Close-code counts and repeat patterns only consider
// incidents inside the recency window, matching candidate derivation. It
// is a pure derivation with no storage side effects.
func (a *Analyzer) Summarize(incidents []models.LinkedIncident, asOf time.Time) models.IncidentScoreDetails {
	details := models.IncidentScoreDetails{
		CodeCounts:     make(map[string]int),
		TotalIncidents: len(incidents),
	}

	for i := range incidents {
		inc := &incidents[i].Incident
		if !a.recentlyActive(inc, asOf) {
			continue
		}
		details.RecentIncidents++
		if inc.CloseCode != "" {
			details.CodeCounts[inc.CloseCode]++
		}
	}

	for _, count := range details.CodeCounts {
		if count >= a.opts.RepeatPatternThreshold {
			details.RepeatPatterns++
		}
	}

	return details
}

// recentlyActive reports whether an incident counts toward the recency
// window: closed inside it, or still open and opened inside it.
func (a *Analyzer) recentlyActive(inc *models.Incident, asOf time.Time) bool {
	if inc.ClosedAt != nil {
		return inc.ClosedWithin(a.opts.RecentWindow, asOf)
	}
	return inc.OpenedAt.After(asOf.Add(-a.opts.RecentWindow)) && !inc.OpenedAt.After(asOf)
}

// Run performs a full analysis pass: derive candidates for every linked
// application, reconcile them against open recommendations, and expire
// recommendations whose signal disappeared.
func (a *Analyzer) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	incidents, err := a.store.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading incidents: %w", err)
	}

	byApp := make(map[int64][]models.LinkedIncident)
	for _, linked := range incidents {
		if linked.ApplicationID == nil {
			continue
		}
		byApp[*linked.ApplicationID] = append(byApp[*linked.ApplicationID], linked)
	}

	result := &Result{Details: make(map[int64]models.IncidentScoreDetails, len(byApp))}

	var candidates []models.IncidentRecommendation
	for appID, appIncidents := range byApp {
		result.Details[appID] = a.Summarize(appIncidents, asOf)
		candidates = append(candidates, a.deriveCandidates(appID, appIncidents, asOf)...)
	}

	existing, err := a.store.ListOpenRecommendations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open recommendations: %w", err)
	}

	openByKey := make(map[string]*models.IncidentRecommendation, len(existing))
	for i := range existing {
		openByKey[existing[i].SignalKey()] = &existing[i]
	}

	live := make(map[string]bool, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		key := candidate.SignalKey()
		live[key] = true

		if current, ok := openByKey[key]; ok {
			// Refresh evidence but keep the id, status, and created time so
			// a recommendation someone already triaged is not reset.
			current.Confidence = candidate.Confidence
			current.IncidentCount = candidate.IncidentCount
			current.RelatedTickets = candidate.RelatedTickets
			current.RelatedCodes = candidate.RelatedCodes
			current.Priority = candidate.Priority
			current.UpdatedAt = asOf
			if err := a.store.UpdateRecommendation(ctx, current); err != nil {
				return result, fmt.Errorf("refreshing recommendation %s: %w", current.ID, err)
			}
			result.Refreshed++
			continue
		}

		if err := a.store.CreateRecommendation(ctx, candidate); err != nil {
			return result, fmt.Errorf("creating recommendation: %w", err)
		}
		result.Created++
	}

	// Expire stale Active recommendations. In-progress ones stay put: a
	// human is working them, and the lifecycle forbids expiring them anyway.
	for key, current := range openByKey {
		if live[key] || current.Status != models.RecommendationActive {
			continue
		}
		if err := current.Transition(models.RecommendationExpired, asOf); err != nil {
			return result, err
		}
		if err := a.store.UpdateRecommendation(ctx, current); err != nil {
			return result, fmt.Errorf("expiring recommendation %s: %w", current.ID, err)
		}
		result.Expired++
	}

	a.logger.Info("Analysis pass complete",
		"applications", len(byApp),
		"created", result.Created,
		"refreshed", result.Refreshed,
		"expired", result.Expired,
	)

	return result, nil
}

// deriveCandidates builds the recommendations one application's recent
// incident history supports.
func (a *Analyzer) deriveCandidates(appID int64, incidents []models.LinkedIncident, asOf time.Time) []models.IncidentRecommendation {
	recent := make([]models.LinkedIncident, 0, len(incidents))
	for i := range incidents {
		if a.recentlyActive(&incidents[i].Incident, asOf) {
			recent = append(recent, incidents[i])
		}
	}

	var recs []models.IncidentRecommendation

	byCode := make(map[string][]string)
	for i := range recent {
		inc := &recent[i].Incident
		if inc.CloseCode != "" {
			byCode[inc.CloseCode] = append(byCode[inc.CloseCode], inc.TicketNumber)
		}
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		tickets := byCode[code]
		if len(tickets) < a.opts.RepeatPatternThreshold {
			continue
		}
		recs = append(recs, a.newRecommendation(appID, models.RecommendationRepeatPattern, code,
			fmt.Sprintf("Recurring incidents closed as %s", code),
			fmt.Sprintf("%d incidents closed with code %s in the current window; the underlying cause is likely unresolved.", len(tickets), code),
			[]string{code}, tickets, asOf))
	}

	if len(recent) >= a.opts.HighVolumeThreshold {
		tickets := make([]string, 0, len(recent))
		for i := range recent {
			tickets = append(tickets, recent[i].Incident.TicketNumber)
		}
		recs = append(recs, a.newRecommendation(appID, models.RecommendationHighVolume, "volume",
			"High incident volume",
			fmt.Sprintf("%d incidents in the current window exceed the volume threshold of %d.", len(recent), a.opts.HighVolumeThreshold),
			codes, tickets, asOf))
	}

	return recs
}

func (a *Analyzer) newRecommendation(appID int64, recType models.RecommendationType, rootSignal, title, description string, codes, tickets []string, asOf time.Time) models.IncidentRecommendation {
	id := appID
	return models.IncidentRecommendation{
		ID:             uuid.New().String(),
		ApplicationID:  &id,
		Type:           recType,
		Status:         models.RecommendationActive,
		Priority:       priorityForCount(len(tickets), a.opts.RepeatPatternThreshold),
		Confidence:     confidenceForCount(len(tickets)),
		Title:          title,
		Description:    description,
		RootSignal:     rootSignal,
		RelatedCodes:   codes,
		RelatedTickets: tickets,
		IncidentCount:  len(tickets),
		CreatedAt:      asOf,
		UpdatedAt:      asOf,
	}
}

// confidenceForCount maps evidence size to a confidence percentage. The
// mapping is deterministic so re-runs over the same data agree.
func confidenceForCount(count int) int {
	confidence := 50 + count*10
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func priorityForCount(count, threshold int) int {
	if count >= threshold*2 {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}
