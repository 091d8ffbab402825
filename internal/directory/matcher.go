// Package directory resolves free-text identity strings against the trusted
// identity directory. Matching is exact-or-alias only: an unresolved
// candidate is reported as unmatched rather than guessed, because a
// false-positive identity match carries real organizational risk.
package directory

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// CandidateType tells the matcher what kind of identity string it received.
type CandidateType string

// Candidate types.
const (
	CandidateName  CandidateType = "name"
	CandidateEmail CandidateType = "email"
)

// Match confidence by method. Login matches are authoritative; alias
// matches rely on a manually curated table.
const (
	ConfidenceLogin       = 100
	ConfidenceDisplayName = 95
	ConfidenceAlias       = 85
)

// MatchResult is the outcome of resolving one candidate.
type MatchResult struct {
	Login       string `json:"login,omitempty"`
	Method      string `json:"method,omitempty"`
	DirectoryID int64  `json:"directory_id,omitempty"`
	Confidence  int    `json:"confidence"`
	Matched     bool   `json:"matched"`
}

// Matcher indexes a directory snapshot for exact and alias lookups. The
// index is built once from a snapshot and is safe for concurrent reads.
type Matcher struct {
	logger        logger.Logger
	byLogin       map[string]*models.DirectoryUser
	byDisplayName map[string]*models.DirectoryUser
	byAlias       map[string]*models.DirectoryUser
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the matcher's logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		m.logger = l
	}
}

// NewMatcher builds the lookup index from a directory snapshot plus the
// configured extra alias table (login -> alternate names covering maiden
// names and legacy accounts).
func NewMatcher(users []models.DirectoryUser, extraAliases map[string][]string, opts ...Option) *Matcher {
	m := &Matcher{
		logger:        logger.GetGlobalLogger(),
		byLogin:       make(map[string]*models.DirectoryUser, len(users)),
		byDisplayName: make(map[string]*models.DirectoryUser, len(users)),
		byAlias:       make(map[string]*models.DirectoryUser),
	}

	for _, opt := range opts {
		opt(m)
	}

	for i := range users {
		user := &users[i]

		if key := Normalize(user.Login); key != "" {
			m.byLogin[key] = user
		}
		if key := Normalize(user.DisplayName); key != "" {
			m.byDisplayName[key] = user
		}
		for _, alias := range user.Aliases {
			m.addAlias(alias, user)
		}
		for _, alias := range extraAliases[user.Login] {
			m.addAlias(alias, user)
		}
	}

	m.logger.Debug("Built directory index",
		"users", len(users),
		"aliases", len(m.byAlias),
	)

	return m
}

func (m *Matcher) addAlias(alias string, user *models.DirectoryUser) {
	key := Normalize(alias)
	if key == "" {
		return
	}
	if existing, ok := m.byAlias[key]; ok && existing.ID != user.ID {
		m.logger.Warn("Ambiguous directory alias dropped",
			"alias", alias,
			"login", user.Login,
			"conflicts_with", existing.Login,
		)
		return
	}
	m.byAlias[key] = user
}

// Resolve matches a candidate identity string against the directory.
// Matching order, first hit wins: exact login, exact display name,
// configured alias. No fuzzy matching is performed.
func (m *Matcher) Resolve(candidate string, candidateType CandidateType) MatchResult {
	key := Normalize(candidate)
	if key == "" {
		return MatchResult{}
	}

	if user, ok := m.byLogin[key]; ok {
		return MatchResult{Matched: true, DirectoryID: user.ID, Login: user.Login, Confidence: ConfidenceLogin, Method: "login"}
	}

	// Email candidates that miss the login index have no other exact form
	// to try; a display name should not be confused with an address.
	if candidateType == CandidateEmail {
		if user, ok := m.byAlias[key]; ok {
			return MatchResult{Matched: true, DirectoryID: user.ID, Login: user.Login, Confidence: ConfidenceAlias, Method: "alias"}
		}
		return MatchResult{}
	}

	if user, ok := m.byDisplayName[key]; ok {
		return MatchResult{Matched: true, DirectoryID: user.ID, Login: user.Login, Confidence: ConfidenceDisplayName, Method: "display-name"}
	}

	if user, ok := m.byAlias[key]; ok {
		return MatchResult{Matched: true, DirectoryID: user.ID, Login: user.Login, Confidence: ConfidenceAlias, Method: "alias"}
	}

	return MatchResult{}
}

// Normalize canonicalizes an identity or application name for comparison:
// trimmed, inner whitespace collapsed, case-folded.
func Normalize(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		return ""
	}
	return cases.Fold().String(collapsed)
}
