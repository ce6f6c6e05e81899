package ingest

import (
	"encoding/json"
	"io"
	"sync"

	"pubcat/internal/publication"
)

// BulkWriter appends records in bulk-index form: an action line followed by
// the record itself. It is safe for concurrent use.
type BulkWriter struct {
	mu    sync.Mutex
	w     io.Writer
	index string
}

func NewBulkWriter(w io.Writer, index string) *BulkWriter {
	return &BulkWriter{w: w, index: index}
}

func (b *BulkWriter) Write(r publication.Record) error {
	action, err := json.Marshal(map[string]map[string]any{"index": {"_index": b.index, "_id": r.ID}})
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(action)+len(data)+2)
	buf = append(append(append(append(buf, action...), '\n'), data...), '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err = b.w.Write(buf)
	return err
}
