package collector

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// TranscriptEntry is one captured line in a JSONL transcript.
type TranscriptEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}

// JSONLTranscript writes captured lines as JSON Lines.
type JSONLTranscript struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewJSONLTranscript creates a transcript writer on w.
func NewJSONLTranscript(w io.Writer) *JSONLTranscript {
	return &JSONLTranscript{
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

// WriteLine implements LineSink.
func (t *JSONLTranscript) WriteLine(seq int, line string) {
	if t == nil || t.enc == nil {
		return
	}
	entry := TranscriptEntry{
		Seq:       seq,
		Timestamp: t.now().UTC(),
		Line:      line,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.enc.Encode(entry)
}
