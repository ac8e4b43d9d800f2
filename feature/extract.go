package feature

import (
	"strings"

	"github.com/LabPy/lantz-core/errors"
)

// extractor pulls a field out of an instrument answer using a literal
// pattern with a single {} placeholder ("FREQ {} HZ").
type extractor struct {
	prefix string
	suffix string
}

func newExtractor(pattern string) (*extractor, error) {
	i := strings.Index(pattern, "{}")
	if i < 0 {
		return nil, errors.Newf("extract pattern %q has no {} placeholder", pattern)
	}
	if strings.Contains(pattern[i+2:], "{}") {
		return nil, errors.Newf("extract pattern %q has more than one {} placeholder", pattern)
	}
	return &extractor{prefix: pattern[:i], suffix: pattern[i+2:]}, nil
}

func mustExtractor(pattern string) *extractor {
	ex, err := newExtractor(pattern)
	if err != nil {
		panic(err)
	}
	return ex
}

func (e *extractor) apply(answer string) (string, error) {
	s := strings.TrimRight(answer, "\r\n")
	if !strings.HasPrefix(s, e.prefix) || !strings.HasSuffix(s, e.suffix) {
		return "", errors.Newf("answer %q does not match extract pattern %q{}%q",
			answer, e.prefix, e.suffix)
	}
	return s[len(e.prefix) : len(s)-len(e.suffix)], nil
}
