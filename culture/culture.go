// Package culture loads country negotiation profiles and renders them
// as prompt fragments. Profiles combine Hofstede dimension scores with
// hand-written interaction rules; games consume the rendered context as
// an opaque behaviour string.
package culture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// HofstedeScores holds the six Hofstede cultural dimensions.
type HofstedeScores struct {
	// PDI is the power distance index.
	PDI int `json:"pdi"`
	// IDV is individualism versus collectivism.
	IDV int `json:"idv"`
	// MAS is masculinity versus femininity.
	MAS int `json:"mas"`
	// UAI is the uncertainty avoidance index.
	UAI int `json:"uai"`
	// LTOWVS is long-term orientation.
	LTOWVS float64 `json:"ltowvs"`
	// IVR is indulgence versus restraint.
	IVR float64 `json:"ivr"`
}

// InteractionProfile is the hand-written part of a profile.
type InteractionProfile struct {
	Type           string `json:"type"`
	BehaviourRules string `json:"behaviour_rules"`
}

// Profile is one country's negotiation profile.
type Profile struct {
	Country     string
	CountryCode string
	Hofstede    HofstedeScores
	Interaction InteractionProfile
}

// NegotiationStyle summarizes the profile's negotiation tendencies from
// its dimension scores. Scores in the middle band contribute nothing;
// a profile entirely in the middle reads as a balanced approach.
func (p *Profile) NegotiationStyle() string {
	var styles []string

	switch {
	case p.Hofstede.IDV <= 35:
		styles = append(styles, "group-oriented decision making")
	case p.Hofstede.IDV >= 65:
		styles = append(styles, "independent decision making")
	}

	switch {
	case p.Hofstede.PDI <= 35:
		styles = append(styles, "egalitarian approach")
	case p.Hofstede.PDI >= 65:
		styles = append(styles, "hierarchical respect")
	}

	switch {
	case p.Hofstede.UAI <= 35:
		styles = append(styles, "flexible and adaptive")
	case p.Hofstede.UAI >= 65:
		styles = append(styles, "structured and risk-averse")
	}

	if len(styles) == 0 {
		return "balanced approach"
	}
	return strings.Join(styles, ", ")
}

// CommunicationStyle summarizes directness from the individualism score.
func (p *Profile) CommunicationStyle() string {
	switch {
	case p.Hofstede.IDV <= 35:
		return "indirect and context-aware communication"
	case p.Hofstede.IDV >= 65:
		return "direct and explicit communication"
	default:
		return "moderate directness in communication"
	}
}

// Context renders the full prompt fragment for the profile.
func (p *Profile) Context() string {
	return strings.Join([]string{
		fmt.Sprintf("You are negotiating as a representative from %s.", p.Country),
		"Cultural background: " + p.Interaction.Type,
		"Behavior guidelines: " + p.Interaction.BehaviourRules,
		"Negotiation style: " + p.NegotiationStyle(),
		"Communication approach: " + p.CommunicationStyle(),
	}, "\n")
}

// profileFile is the on-disk JSON layout.
type profileFile struct {
	Metadata struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"metadata"`
	HofstedeScores HofstedeScores     `json:"hofstede_scores"`
	Interaction    InteractionProfile `json:"interaction_profile"`
}

// Manager holds the loaded profiles keyed by lower-cased country name.
type Manager struct {
	profiles map[string]*Profile
	logger   *zap.Logger
}

// NewManager loads every *_profile.json file under dir. Unreadable or
// malformed files are skipped with a warning; a missing directory
// yields an empty manager rather than an error.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		profiles: map[string]*Profile{},
		logger:   logger.With(zap.String("component", "culture")),
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return m, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*_profile.json"))
	if err != nil {
		return nil, fmt.Errorf("scan profile dir: %w", err)
	}
	for _, path := range paths {
		profile, err := loadProfile(path)
		if err != nil {
			m.logger.Warn("skipping unreadable profile",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		m.profiles[strings.ToLower(profile.Country)] = profile
	}

	m.logger.Info("cultural profiles loaded", zap.Int("count", len(m.profiles)))
	return m, nil
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f profileFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if f.Metadata.Country == "" {
		return nil, fmt.Errorf("profile %s has no country", filepath.Base(path))
	}
	return &Profile{
		Country:     f.Metadata.Country,
		CountryCode: f.Metadata.CountryCode,
		Hofstede:    f.HofstedeScores,
		Interaction: f.Interaction,
	}, nil
}

// Get returns the profile for a country, matching case-insensitively.
func (m *Manager) Get(country string) (*Profile, bool) {
	p, ok := m.profiles[strings.ToLower(country)]
	return p, ok
}

// Countries lists the loaded country names in lower case.
func (m *Manager) Countries() []string {
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	return names
}

// Context returns the prompt fragment for a country, or "" when the
// country has no profile. Games treat the empty string as "no cultural
// framing".
func (m *Manager) Context(country string) string {
	p, ok := m.Get(country)
	if !ok {
		return ""
	}
	return p.Context()
}
