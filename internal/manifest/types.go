package manifest

// FileName is the manifest written into a sink directory.
const FileName = "imgshrink.manifest.json"

// Manifest lists every file a directory sink has received.
type Manifest struct {
	Version     int     `json:"version"`
	GeneratedAt string  `json:"generated_at"`
	Profile     string  `json:"profile"`
	Entries     []Entry `json:"entries"`
	Stats       Stats   `json:"stats"`
}

// Entry is one uploaded file.
type Entry struct {
	Path       string `json:"path"`        // relative to the manifest
	Name       string `json:"name"`        // name as handed to the sink
	SourceName string `json:"source_name"` // name before compression
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	Hash       string `json:"hash"` // 16 hex chars of xxhash64

	OriginalSize int64   `json:"original_size"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Quality      float64 `json:"quality,omitempty"`
	Attempts     int     `json:"attempts,omitempty"`
	Outcome      string  `json:"outcome"`

	Channel    string `json:"channel,omitempty"`
	Position   int    `json:"position"`
	UploadedAt string `json:"uploaded_at"`
}

// Stats aggregates manifest entries.
type Stats struct {
	TotalInputBytes  int64          `json:"total_input_bytes"`
	TotalOutputBytes int64          `json:"total_output_bytes"`
	TotalEntries     int            `json:"total_entries"`
	Compressed       int            `json:"compressed"`
	Outcomes         map[string]int `json:"outcomes,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1
