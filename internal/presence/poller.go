package presence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/seuros/folio/internal/httpx"
)

// ErrNotLinked means the relay does not track the subject.
var ErrNotLinked = errors.New("presence: subject not linked to relay")

// Fetcher retrieves the subject's current presence.
type Fetcher interface {
	Fetch(ctx context.Context) (*Presence, error)
}

// HTTPFetcher polls the relay REST endpoint.
type HTTPFetcher struct {
	client    *http.Client
	apiURL    string
	subjectID string
	now       func() time.Time
}

func NewHTTPFetcher(client *http.Client, apiURL, subjectID string, now func() time.Time) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if now == nil {
		now = time.Now
	}
	return &HTTPFetcher{
		client:    client,
		apiURL:    strings.TrimRight(apiURL, "/"),
		subjectID: subjectID,
		now:       now,
	}
}

// Fetch returns ErrNotLinked on 404 and a *ValidationError when the body
// does not hold a usable presence.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*Presence, error) {
	// The timestamp query defeats intermediary caches.
	target := fmt.Sprintf("%s/v1/users/%s?_=%d", f.apiURL, url.PathEscape(f.subjectID), f.now().UnixMilli())

	body, err := httpx.GetBody(ctx, f.client, target)
	if err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}

	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, &ValidationError{Reason: "relay reported failure"}
	}
	return ParsePresence(envelope.Data)
}
