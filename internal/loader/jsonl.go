package loader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"semsearch/internal/domain"
)

const maxLineBytes = 16 * 1024 * 1024

// line is one arXiv-metadata style JSON object. Field names follow the
// public arXiv metadata dump; unknown fields are ignored.
type line struct {
	Title      *string   `json:"title,omitempty"`
	Authors    *string   `json:"authors,omitempty"`
	Abstract   *string   `json:"abstract,omitempty"`
	JournalRef *string   `json:"journal-ref,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Decode reads JSON-lines records. Blank lines are skipped. Records without
// an embedding come back with a nil Vector.
func Decode(r io.Reader) ([]domain.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var out []domain.Record
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, domain.Record{
			Document: domain.Document{
				Title:      l.Title,
				Authors:    l.Authors,
				Abstract:   l.Abstract,
				JournalRef: l.JournalRef,
			},
			Vector: l.Embedding,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}

// Encode writes records as JSON lines, including their embeddings.
func Encode(w io.Writer, records []domain.Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, r := range records {
		l := line{
			Title:      r.Title,
			Authors:    r.Authors,
			Abstract:   r.Abstract,
			JournalRef: r.JournalRef,
			Embedding:  r.Vector,
		}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return bw.Flush()
}
