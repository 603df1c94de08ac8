package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/emilsk/kasa/pkg/models"
)

// FileType represents the statement export format being processed.
type FileType string

const (
	RevolutCSV   FileType = "revolut_csv"
	SemicolonTXT FileType = "semicolon_txt"
	LegacyXLS    FileType = "legacy_xls"
)

// ParseError means the input is malformed or unsupported and the user has to
// fix or re-export the file.
type ParseError struct {
	Format string
	Line   int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.Format, e.Line, e.Msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Msg)
}

// Parser converts raw statement exports into normalized records. It never
// assigns IDs and never deduplicates — both are the ledger's job.
type Parser struct {
	logger           *log.Logger
	fallbackCurrency string
	hidePatterns     []*regexp.Regexp
}

// Option configures a Parser.
type Option func(*Parser)

// WithFallbackCurrency sets the currency assumed for formats that carry no
// currency column.
func WithFallbackCurrency(code string) Option {
	return func(p *Parser) { p.fallbackCurrency = strings.ToUpper(code) }
}

// WithHidePatterns replaces the default set of description patterns that mark
// a record hidden on import (internal transfers and the like).
func WithHidePatterns(patterns []string) Option {
	return func(p *Parser) { p.hidePatterns = compilePatterns(patterns) }
}

// DefaultHidePatterns flag internal movements that should not show up in
// spending analytics: transfers between own accounts and currency exchanges.
func DefaultHidePatterns() []string {
	return []string{
		`(?i)^transfer from .+ user$`,
		`(?i)^(to|from) savings account$`,
		`(?i)^to [A-Z]{3}$`,
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

func New(logger *log.Logger, opts ...Option) *Parser {
	p := &Parser{
		logger:           logger,
		fallbackCurrency: "EUR",
		hidePatterns:     compilePatterns(DefaultHidePatterns()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBytes detects the statement format and parses it into records in
// source order. Duplicate rows pass through unfiltered.
func (p *Parser) ProcessBytes(data []byte, filename string) ([]models.Record, error) {
	fileType := detectType(data, filename)
	p.logger.Debug("detected file type", "type", fileType, "filename", filename)

	switch fileType {
	case RevolutCSV:
		return p.ParseRevolutCSV(data)
	case SemicolonTXT:
		return p.ParseSemicolonTXT(data)
	case LegacyXLS:
		return p.ParseLegacyXLS(data)
	default:
		return nil, &ParseError{Format: string(fileType), Msg: fmt.Sprintf("unrecognized statement format for %q", filename)}
	}
}

func detectType(data []byte, filename string) FileType {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return RevolutCSV
	case strings.HasSuffix(lower, ".txt"):
		return SemicolonTXT
	case strings.HasSuffix(lower, ".xls"):
		return LegacyXLS
	}
	// No useful extension, sniff the content.
	head := strings.ToLower(string(data[:min(len(data), 256)]))
	if strings.Contains(head, "started date") {
		return RevolutCSV
	}
	return ""
}

func (p *Parser) hiddenByDefault(description string) bool {
	for _, re := range p.hidePatterns {
		if re.MatchString(strings.TrimSpace(description)) {
			return true
		}
	}
	return false
}
