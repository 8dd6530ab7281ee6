package insights

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/seuros/folio/internal/storage"
)

// HistoryLimit is the number of distinct visitors kept.
const HistoryLimit = 12

// History is the list of distinct visitor IPs seen locally, newest first.
type History struct {
	store storage.Store
	mu    sync.Mutex
}

func NewHistory(store storage.Store) *History {
	return &History{store: store}
}

// List returns the stored history. Unreadable entries are skipped.
func (h *History) List(ctx context.Context) ([]VisitorRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

// Record moves visitor to the front. An existing record for the same IP is
// merged with it so the two never diverge.
func (h *History) Record(ctx context.Context, visitor *VisitorRecord) ([]VisitorRecord, error) {
	if visitor == nil {
		return h.List(ctx)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	history, err := h.load(ctx)
	if err != nil {
		return nil, err
	}

	merged := visitor
	next := make([]VisitorRecord, 0, len(history)+1)
	for i := range history {
		if history[i].IP == visitor.IP {
			merged = Merge(merged, &history[i])
			continue
		}
		next = append(next, history[i])
	}
	next = append([]VisitorRecord{*merged}, next...)
	if len(next) > HistoryLimit {
		next = next[:HistoryLimit]
	}

	return next, h.save(ctx, next)
}

func (h *History) load(ctx context.Context) ([]VisitorRecord, error) {
	raw, ok, err := h.store.Get(ctx, storage.KeyVisitorHistory)
	if err != nil {
		return nil, fmt.Errorf("load visitor history: %w", err)
	}
	if !ok || raw == "" {
		return []VisitorRecord{}, nil
	}

	var stored []VisitorRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return []VisitorRecord{}, nil
	}
	history := make([]VisitorRecord, 0, len(stored))
	for _, r := range stored {
		if record := NewRecord(r); record != nil {
			history = append(history, *record)
		}
	}
	return history, nil
}

func (h *History) save(ctx context.Context, history []VisitorRecord) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode visitor history: %w", err)
	}
	if err := h.store.Set(ctx, storage.KeyVisitorHistory, string(raw)); err != nil {
		return fmt.Errorf("save visitor history: %w", err)
	}
	return nil
}
