package insights

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/seuros/folio/internal/logging"
	"github.com/seuros/folio/internal/storage"
)

// ErrorMessage is shown when no visitor data could be loaded.
const ErrorMessage = "Could not load visitor analytics right now."

// Result is everything the insights panel shows.
type Result struct {
	ViewCount      int64           `json:"viewCount" yaml:"view_count"`
	ViewSource     ViewSource      `json:"viewSource" yaml:"view_source"`
	CurrentVisitor *VisitorRecord  `json:"currentVisitor" yaml:"current_visitor"`
	History        []VisitorRecord `json:"visitorHistory" yaml:"visitor_history"`
	ErrorMessage   string          `json:"errorMessage" yaml:"error_message"`
}

// Service combines the view counter, the locator and the visitor history.
type Service struct {
	counter *ViewCounter
	locator *Locator
	history *History
	session storage.Store
}

func NewService(counter *ViewCounter, locator *Locator, history *History, session storage.Store) *Service {
	return &Service{counter: counter, locator: locator, history: history, session: session}
}

// Load runs the counter and the visitor lookup concurrently. It always
// returns a usable Result.
func (s *Service) Load(ctx context.Context) Result {
	if err := s.session.Delete(ctx, storage.KeyVisitorLogged); err != nil {
		logging.L().Debug("failed to clear legacy visitor flag", "error", err)
	}

	var (
		count   ViewCount
		visitor *VisitorRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		count = s.counter.Get(ctx)
		return nil
	})
	g.Go(func() error {
		visitor = s.locator.CurrentVisitor(ctx)
		return nil
	})
	_ = g.Wait()

	result := Result{
		ViewCount:      count.Value,
		ViewSource:     count.Source,
		CurrentVisitor: visitor,
		History:        []VisitorRecord{},
	}

	if visitor == nil {
		result.ErrorMessage = ErrorMessage
		if history, err := s.history.List(ctx); err == nil {
			result.History = history
		}
	} else if history, err := s.history.Record(ctx, visitor); err != nil {
		logging.L().Warn("failed to record visitor history", "error", err)
	} else {
		result.History = history
	}

	logging.L().Debug("visitor insights loaded",
		"view_count", result.ViewCount,
		"view_source", result.ViewSource,
		"visitor_found", visitor != nil)
	return result
}
