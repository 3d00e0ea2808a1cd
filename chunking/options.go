// Package chunking regroups a flat, ordered sequence of typed document
// elements into bounded-size chunks suitable for embedding and retrieval.
// The whole pipeline is a pure, deterministic transformation: no I/O, no
// shared state, safe to run concurrently across documents.
package chunking

import (
	"github.com/go-playground/validator/v10"

	"ingest-worker/config"
	"ingest-worker/elements"
	perrors "ingest-worker/pkg/errors"
)

// Strategy selects how section boundaries are derived.
type Strategy string

const (
	// StrategyNone disables chunking entirely; elements pass through.
	StrategyNone Strategy = ""
	// StrategyBasic ignores titles and metadata; only hard size limits
	// and table/non-text isolation apply.
	StrategyBasic Strategy = "basic"
	// StrategyByTitle additionally cuts sections at Title elements and
	// metadata discontinuities.
	StrategyByTitle Strategy = "by_title"
)

// Options configures one chunking invocation. Build with
// DefaultOptions and override fields as needed; invalid values are
// rejected before any processing starts.
type Options struct {
	Strategy Strategy `json:"chunking_strategy" validate:"omitempty,oneof=basic by_title"`

	// MaxCharacters is the hard cap: no emitted chunk's text exceeds it,
	// except a forced-oversize singleton that could not be split. Must
	// be positive.
	MaxCharacters int `json:"max_characters"`

	// NewAfterNChars is the soft cap: a chunk is closed once its text
	// reaches this length even if more would fit. Zero means "equal to
	// MaxCharacters"; values above MaxCharacters are clamped down.
	NewAfterNChars int `json:"new_after_n_chars"`

	// CombineTextUnderNChars merges adjacent small composite chunks
	// below this size after the greedy pass. Zero disables the pass.
	// Values above NewAfterNChars are clamped down.
	CombineTextUnderNChars int `json:"combine_text_under_n_chars"`

	// MultipageSections, for by_title only, allows a section to span
	// page boundaries.
	MultipageSections bool `json:"multipage_sections"`

	// IncludeOrigElements carries the constituent elements inside each
	// chunk's metadata.
	IncludeOrigElements bool `json:"include_orig_elements"`

	// IDFunc derives chunk ids from chunk text. Defaults to the
	// deterministic content hash; inject elements.UUIDID for unique-id
	// mode.
	IDFunc elements.IDStrategy `json:"-" validate:"-"`
}

const (
	// DefaultMaxCharacters is the default hard cap per chunk.
	DefaultMaxCharacters = 1500
	// DefaultCombineTextUnderNChars is the default small-chunk merge
	// threshold.
	DefaultCombineTextUnderNChars = 500
)

// DefaultOptions returns the documented defaults for the given strategy.
func DefaultOptions(strategy Strategy) Options {
	return Options{
		Strategy:               strategy,
		MaxCharacters:          DefaultMaxCharacters,
		NewAfterNChars:         DefaultMaxCharacters,
		CombineTextUnderNChars: DefaultCombineTextUnderNChars,
		MultipageSections:      true,
	}
}

// OptionsFromConfig maps the worker's configuration section onto
// chunking options.
func OptionsFromConfig(cc *config.ChunkingConfig) Options {
	opts := Options{
		Strategy:               Strategy(cc.Strategy),
		MaxCharacters:          cc.MaxCharacters,
		NewAfterNChars:         cc.NewAfterNChars,
		CombineTextUnderNChars: cc.CombineTextUnderNChars,
		MultipageSections:      cc.MultipageSections,
		IncludeOrigElements:    cc.IncludeOrigElements,
	}
	if cc.UniqueIDs {
		opts.IDFunc = elements.UUIDID
	}
	return opts
}

var validate = validator.New()

// normalize applies defaults, clamps the documented thresholds, and
// rejects invalid configuration eagerly. It never mutates the receiver.
func (o Options) normalize() (Options, error) {
	if err := validate.Struct(o); err != nil {
		return o, perrors.Wrap(err, perrors.ConfigurationError, "CHUNKING_CONFIG_INVALID", "invalid chunking configuration")
	}
	if o.Strategy == StrategyNone {
		// Chunking disabled; size limits are not consulted.
		return o, nil
	}
	if o.MaxCharacters <= 0 {
		return o, perrors.NewConfigurationError("max_characters must be positive")
	}
	if o.NewAfterNChars < 0 {
		return o, perrors.NewConfigurationError("new_after_n_chars must not be negative")
	}
	if o.NewAfterNChars == 0 || o.NewAfterNChars > o.MaxCharacters {
		o.NewAfterNChars = o.MaxCharacters
	}
	if o.CombineTextUnderNChars < 0 {
		return o, perrors.NewConfigurationError("combine_text_under_n_chars must not be negative")
	}
	if o.CombineTextUnderNChars > o.NewAfterNChars {
		o.CombineTextUnderNChars = o.NewAfterNChars
	}
	if o.IDFunc == nil {
		o.IDFunc = elements.HashID
	}
	return o, nil
}
