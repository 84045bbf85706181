package types

// WordEntry is the atomic transcription unit produced by the backend for one
// chunk. Timestamps are strings in "MM:SS.mmm" form (exactly 3 decimal digits)
// until the assembler reformats them. Word carries either literal spoken text
// or one of the reserved tag forms (<FIL>, <NOISE>, <NPS>, <AI>, <IWP>).
type WordEntry struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Word     string `json:"word"`
	Language string `json:"language,omitempty"`
}

// AnnotationEntry is the persisted per-word shape. Start/End are
// "H:MM:SS.mmmmmm" (hour component always present, 6 fractional digits) and
// End never exceeds the audio duration.
type AnnotationEntry struct {
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Transcription []string `json:"Transcription"`
}

// TranscriptionRecord is the top-level output for one processed asset.
type TranscriptionRecord struct {
	ID          int               `json:"id"`
	Filename    string            `json:"filename"`
	Annotations []AnnotationEntry `json:"annotations"`
}

// AudioAsset is an immutable reference to a decodable audio file.
type AudioAsset struct {
	Path       string
	Duration   float64 // seconds
	SampleRate int
}

// Chunk is a contiguous sub-range of an asset, independently transcribable.
// Index is the 0-based sequence position and doubles as the merge offset
// multiplier. For a single-chunk asset Path is the original file and
// Transient is false; rendered sub-files are transient and removed by the
// pipeline once consumed.
type Chunk struct {
	Index     int
	Path      string
	Transient bool
}
