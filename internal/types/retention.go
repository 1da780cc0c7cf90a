package types

import "time"

// Exclusions exempts whole repositories or tag patterns from deletion.
// Patterns are glob-style; the common forms are "prefix*" and "*suffix".
type Exclusions struct {
	Repositories []string `json:"repositories" yaml:"repositories" mapstructure:"repositories"`
	TagPatterns  []string `json:"tags_patterns" yaml:"tags_patterns" mapstructure:"tags_patterns"`
}

// RetentionPolicy is the configuration snapshot a run evaluates against.
// It is built once at run start and never mutated afterwards.
type RetentionPolicy struct {
	CutoffTime    time.Time
	ProtectedTags []string
	Exclusions    Exclusions
	DryRun        bool
}
