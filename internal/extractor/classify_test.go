package extractor

import (
	"errors"
	"testing"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"invalid url", "ERROR: 'htp://nope' is not a valid URL", ErrInvalidURL},
		{"unsupported", "ERROR: Unsupported URL: https://example.com/page", ErrUnsupported},
		{"auth required", "ERROR: Sign in to confirm you're not a bot", ErrAuthRequired},
		{"private video", "ERROR: Private video. Sign in if you've been granted access", ErrAuthRequired},
		{"geo blocked", "ERROR: The uploader has not made this video available in your country", ErrBlocked},
		{"forbidden", "ERROR: unable to download video data: HTTP Error 403: Forbidden", ErrBlocked},
		{"transcode", "ERROR: Postprocessing: audio conversion failed", ErrTranscode},
		{"dns", "ERROR: Unable to download webpage: temporary failure in name resolution", ErrNetwork},
		{"unknown", "ERROR: something nobody has seen before", ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFetchError(errors.New("exit status 1"), tt.stderr)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyFetchError(%q) = %v, want errors.Is %v", tt.stderr, got, tt.want)
			}
		})
	}
}

func TestClassifyProbeError_BlockedMapsToAuth(t *testing.T) {
	// A 403 on a metadata probe reads as "needs credentials" to the user,
	// not as an extraction block mid-transfer.
	got := classifyProbeError(errors.New("exit status 1"), "HTTP Error 403: Forbidden")
	if !errors.Is(got, ErrAuthRequired) {
		t.Errorf("classifyProbeError(403) = %v, want ErrAuthRequired", got)
	}
}

func TestClassifyKeepsCauseText(t *testing.T) {
	got := classifyFetchError(errors.New("exit status 1"), "ERROR: Unsupported URL: https://example.com")
	if got.Error() == ErrUnsupported.Error() {
		t.Errorf("classified error lost the underlying cause: %v", got)
	}
}
