package insights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/folio/internal/storage"
)

func newTestService(t *testing.T, geo map[string]string, counterUp bool) (*Service, storage.Store, storage.Store) {
	t.Helper()
	g := newGeoServer(t, geo)
	counterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !counterUp {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"value":100}`))
	}))
	t.Cleanup(counterSrv.Close)

	local := storage.NewMemory()
	session := storage.NewMemory()
	svc := NewService(
		NewViewCounter(counterSrv.Client(), counterSrv.URL, "ns", "key", local, session),
		g.locator(WithGeoCache(NewGeoCache(local, nil))),
		NewHistory(local),
		session,
	)
	return svc, local, session
}

func TestServiceLoadHappyPath(t *testing.T) {
	ctx := context.Background()
	svc, _, session := newTestService(t, map[string]string{
		"/a/json": `{"ip":"7.7.7.7","city":"Da Nang"}`,
	}, true)
	require.NoError(t, session.Set(ctx, storage.KeyVisitorLogged, "1"))

	result := svc.Load(ctx)
	assert.Equal(t, int64(100), result.ViewCount)
	assert.Equal(t, SourceGlobal, result.ViewSource)
	require.NotNil(t, result.CurrentVisitor)
	assert.Equal(t, "Da Nang", result.CurrentVisitor.City)
	require.Len(t, result.History, 1)
	assert.Equal(t, "7.7.7.7", result.History[0].IP)
	assert.Empty(t, result.ErrorMessage)

	_, ok, err := session.Get(ctx, storage.KeyVisitorLogged)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceLoadTotalFailure(t *testing.T) {
	ctx := context.Background()
	svc, local, _ := newTestService(t, map[string]string{}, false)
	require.NoError(t, local.Set(ctx, storage.KeyLocalViewCount, "12"))

	result := svc.Load(ctx)
	assert.Nil(t, result.CurrentVisitor)
	assert.Equal(t, ErrorMessage, result.ErrorMessage)
	assert.Equal(t, SourceLocal, result.ViewSource)
	assert.Equal(t, int64(13), result.ViewCount)
	assert.NotNil(t, result.History)
}
