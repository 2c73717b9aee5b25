package extractor

import (
	"fmt"
	"strings"
)

// classification patterns for yt-dlp failure output. The tool reports
// failures as free text, so matching is ordered from most to least specific.
var (
	invalidURLPatterns = []string{
		"is not a valid url",
		"invalid url",
		"unsupported scheme",
	}
	unsupportedPatterns = []string{
		"unsupported url",
		"no suitable extractor",
	}
	authPatterns = []string{
		"sign in to confirm",
		"sign in to view",
		"login required",
		"private video",
		"members-only",
		"confirm your age",
		"cookies",
	}
	blockedPatterns = []string{
		"http error 403",
		"forbidden",
		"available in your country",
		"geo restriction",
		"blocked",
	}
	transcodePatterns = []string{
		"postprocess",
		"ffmpeg",
		"audio conversion failed",
	}
	networkPatterns = []string{
		"timed out",
		"connection refused",
		"connection reset",
		"temporary failure in name resolution",
		"name or service not known",
		"network is unreachable",
		"unable to download",
	}
)

// classifyProbeError maps a probe failure onto the adapter taxonomy.
func classifyProbeError(err error, stderr string) error {
	return classify(err, stderr, false)
}

// classifyFetchError maps a fetch failure onto the adapter taxonomy.
func classifyFetchError(err error, stderr string) error {
	return classify(err, stderr, true)
}

func classify(err error, stderr string, fetch bool) error {
	text := strings.ToLower(err.Error())
	if stderr != "" {
		text += " " + strings.ToLower(stderr)
	}

	switch {
	case matchAny(text, invalidURLPatterns):
		return wrap(ErrInvalidURL, err)
	case matchAny(text, unsupportedPatterns):
		return wrap(ErrUnsupported, err)
	case matchAny(text, authPatterns):
		return wrap(ErrAuthRequired, err)
	case matchAny(text, blockedPatterns):
		if fetch {
			return wrap(ErrBlocked, err)
		}
		return wrap(ErrAuthRequired, err)
	case fetch && matchAny(text, transcodePatterns):
		return wrap(ErrTranscode, err)
	case matchAny(text, networkPatterns):
		return wrap(ErrNetwork, err)
	default:
		return wrap(ErrNetwork, err)
	}
}

func matchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %s", sentinel, firstLine(cause.Error()))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
