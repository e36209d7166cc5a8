package export

import (
	"tsa/internal/output"
	"tsa/internal/stackup"
)

// Report is the export envelope around one result snapshot. It carries the
// analysis configuration alongside the numbers so a report file stands on
// its own without access to the workspace database.
type Report struct {
	// Tool identifies the generating tool and version
	Tool string `json:"tool"`

	// Generated is the RFC 3339 export timestamp
	Generated string `json:"generated"`

	// Analysis is the configuration the results were computed from
	Analysis *stackup.Analysis `json:"analysis"`

	// Results is the result snapshot being exported
	Results *stackup.Results `json:"results"`
}

// Options configures report and sample exports
type Options struct {
	// FloatPrecision is the number of decimal places written for floats.
	// Zero or negative falls back to output.DefaultPrecision.
	FloatPrecision int

	// Indent is the report indentation string. Empty means two spaces.
	Indent string

	// Compress wraps the samples dump in a zstd stream and appends a
	// .zst suffix to the written path
	Compress bool
}

// normalized returns opts with defaults filled in
func (opts Options) normalized() Options {
	if opts.FloatPrecision <= 0 {
		opts.FloatPrecision = output.DefaultPrecision
	}
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	return opts
}
