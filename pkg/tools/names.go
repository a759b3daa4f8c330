package tools

import (
	"regexp"
	"strings"

	"github.com/teslashibe/go-caddy/pkg/scoring"
)

// NameExtractor finds a self-introduced first name in a user utterance.
// It is a best-effort fallback for when the model narrates an introduction
// without calling registerPlayerTool.
type NameExtractor interface {
	ExtractName(text string) (string, bool)
}

// PatternExtractor matches common self-introduction phrasings.
type PatternExtractor struct {
	patterns []*regexp.Regexp
}

// namePart matches a name in any script, with inner apostrophes or hyphens.
const namePart = `([\p{L}\p{M}]+(?:['-][\p{L}\p{M}]+)*)`

var introPatterns = []string{
	`my name is ` + namePart,
	`i'm ` + namePart,
	`i am ` + namePart,
	`call me ` + namePart,
	`name's ` + namePart,
}

// NewPatternExtractor returns the default extractor.
func NewPatternExtractor() *PatternExtractor {
	p := &PatternExtractor{patterns: make([]*regexp.Regexp, len(introPatterns))}
	for i, s := range introPatterns {
		p.patterns[i] = regexp.MustCompile(s)
	}
	return p
}

// ExtractName returns the capitalized name from the first matching pattern.
func (p *PatternExtractor) ExtractName(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, re := range p.patterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			return scoring.NormalizeName(m[1]), true
		}
	}
	return "", false
}

// NoExtractor disables name inference.
type NoExtractor struct{}

func (NoExtractor) ExtractName(string) (string, bool) { return "", false }
