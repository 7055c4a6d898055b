package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// Exporter keeps exported rows in memory. It backs the worker in
// development and in tests.
type Exporter struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

var _ sheets.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{sheets: make(map[string][][]string)}
}

// AppendRecord adds a row unless one with the same id already exists.
func (e *Exporter) AppendRecord(_ context.Context, collection store.Collection, id string, record map[string]string) (string, error) {
	name, err := sheets.SheetName(collection)
	if err != nil {
		return "", err
	}
	row, err := sheets.Row(collection, id, record)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.find(name, id); i >= 0 {
		return ref(name, i), nil
	}
	e.sheets[name] = append(e.sheets[name], row)
	return ref(name, len(e.sheets[name])-1), nil
}

// MarkDeleted flags the row for id. Unknown ids are ignored.
func (e *Exporter) MarkDeleted(_ context.Context, collection store.Collection, id string) error {
	name, err := sheets.SheetName(collection)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.find(name, id); i >= 0 {
		e.sheets[name][i][1] = sheets.StatusDeleted
	}
	return nil
}

// Rows returns a copy of the rows exported for collection.
func (e *Exporter) Rows(collection store.Collection) [][]string {
	name, err := sheets.SheetName(collection)
	if err != nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.sheets[name]))
	for i, r := range e.sheets[name] {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (e *Exporter) find(name, id string) int {
	for i, r := range e.sheets[name] {
		if r[0] == id {
			return i
		}
	}
	return -1
}

// ref numbers rows from 2, leaving row 1 for the header as in a real sheet.
func ref(name string, i int) string {
	return fmt.Sprintf("mem:%s!%d", name, i+2)
}
