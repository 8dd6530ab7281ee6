package presence

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seuros/folio/internal/logging"
)

const discordCDN = "https://cdn.discordapp.com"

// AvatarURL returns the CDN URL for a user's avatar. Animated hashes ("a_")
// use gif, others png. Without a hash the default avatar is derived from the
// user ID.
func AvatarURL(userID, hash string) string {
	if hash == "" {
		return discordCDN + "/embed/avatars/" + strconv.Itoa(DefaultAvatarIndex(userID)) + ".png"
	}
	ext := "png"
	if strings.HasPrefix(hash, "a_") {
		ext = "gif"
	}
	return discordCDN + "/avatars/" + url.PathEscape(userID) + "/" + url.PathEscape(hash) + "." + ext
}

// DefaultAvatarIndex is (id >> 22) mod 6; unparseable IDs map to 0.
func DefaultAvatarIndex(userID string) int {
	id, err := strconv.ParseUint(strings.TrimSpace(userID), 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % 6)
}

// DecorationURLs returns the primary and fallback URLs for an avatar
// decoration preset.
func DecorationURLs(asset string) (primary, fallback string) {
	if asset == "" {
		return "", ""
	}
	base := discordCDN + "/avatar-decoration-presets/" + url.PathEscape(asset)
	return base + ".png?size=160&passthrough=true", base + ".webp?size=160&passthrough=true"
}

// DecorationLoader picks the first decoration URL that actually loads and
// remembers the result per primary URL.
type DecorationLoader struct {
	client *http.Client

	mu       sync.Mutex
	resolved map[string]string
}

func NewDecorationLoader(client *http.Client) *DecorationLoader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &DecorationLoader{client: client, resolved: make(map[string]string)}
}

// Resolve returns primary when it loads, else fallback when that loads,
// else "" so the decoration is hidden.
func (l *DecorationLoader) Resolve(ctx context.Context, primary, fallback string) string {
	if primary == "" {
		return ""
	}

	l.mu.Lock()
	if got, ok := l.resolved[primary]; ok {
		l.mu.Unlock()
		return got
	}
	l.mu.Unlock()

	result := ""
	for _, candidate := range []string{primary, fallback} {
		if candidate != "" && l.loads(ctx, candidate) {
			result = candidate
			break
		}
	}

	// A cancelled lookup says nothing about the asset.
	if ctx.Err() == nil {
		l.mu.Lock()
		l.resolved[primary] = result
		l.mu.Unlock()
	}
	return result
}

func (l *DecorationLoader) loads(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		logging.L().Debug("avatar decoration unavailable", "url", target, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
