package extractor

// formatSpec encodes the yt-dlp selection for one quality choice. Selection
// fallback chains are delegated entirely to yt-dlp; pre-combined mp4 formats
// are preferred to avoid segmented-stream 403s.
type formatSpec struct {
	selector     string
	extractAudio bool
	audioFormat  string
}

// Formats maps the quality choices exposed by the API to tool selections.
var Formats = map[string]formatSpec{
	"best":  {selector: "best[ext=mp4]/best"},
	"1080p": {selector: "best[height<=1080][ext=mp4]/best[height<=1080]/best"},
	"720p":  {selector: "best[height<=720][ext=mp4]/best[height<=720]/best"},
	"480p":  {selector: "best[height<=480][ext=mp4]/best[height<=480]/best"},
	"360p":  {selector: "best[height<=360][ext=mp4]/best[height<=360]/best"},
	"audio": {selector: "bestaudio/best", extractAudio: true, audioFormat: "mp3"},
	"flac":  {selector: "bestaudio/best", extractAudio: true, audioFormat: "flac"},
}

// ResolveFormat returns the selection for a quality choice. Unknown choices are
// passed through verbatim as a raw yt-dlp selector, matching the tool's own
// format syntax.
func ResolveFormat(choice string) formatSpec {
	if spec, ok := Formats[choice]; ok {
		return spec
	}
	if choice == "" {
		return Formats["best"]
	}
	return formatSpec{selector: choice}
}
