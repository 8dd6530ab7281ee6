// Package geoip resolves visitor IPs against a local GeoLite2-City database.
package geoip

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/logging"
)

const (
	// DatabaseFile is the GeoLite2 file name inside the data directory.
	DatabaseFile = "GeoLite2-City.mmdb"

	// DefaultDownloadURL is the jsDelivr mirror of the geolite2-city package.
	DefaultDownloadURL = "https://cdn.jsdelivr.net/npm/geolite2-city/GeoLite2-City.mmdb.gz"
)

// Location is what the database knows about one IP.
type Location struct {
	Country  string
	City     string
	Region   string
	Timezone string
}

// Reader looks up IPs. A Reader without a database answers every lookup
// with an empty Location.
type Reader struct {
	db   *geoip2.Reader
	path string
}

// Options control Open.
type Options struct {
	// Download fetches the database when it is missing.
	Download    bool
	DownloadURL string
	Client      *http.Client
}

// DatabasePath returns the expected database location under dataDir.
func DatabasePath(dataDir string) string {
	return filepath.Join(dataDir, DatabaseFile)
}

// Open loads the database from dataDir. A missing or unreadable database is
// logged and leaves the Reader empty; it is not an error.
func Open(ctx context.Context, dataDir string, opts Options) *Reader {
	r := &Reader{path: DatabasePath(dataDir)}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		if !opts.Download {
			logging.L().Info("geoip database not found; offline lookups disabled", "path", r.path)
			return r
		}
		logging.L().Info("geoip database not found, attempting download", "path", r.path)
		if err := download(ctx, opts, r.path); err != nil {
			logging.L().Warn("geoip database download failed", "error", err)
			return r
		}
		logging.L().Info("geoip database downloaded", "path", r.path)
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		logging.L().Warn("could not load geoip database", "path", r.path, "error", err)
		return r
	}
	r.db = db
	logging.L().Info("geoip database loaded", "path", r.path)
	return r
}

// Loaded reports whether a database is available.
func (r *Reader) Loaded() bool {
	return r != nil && r.db != nil
}

// Path is where the database is expected.
func (r *Reader) Path() string {
	return r.path
}

// Lookup returns the location for ipStr.
func (r *Reader) Lookup(ipStr string) (Location, error) {
	if !r.Loaded() {
		return Location{}, nil
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}, fmt.Errorf("invalid IP address: %q", ipStr)
	}

	record, err := r.db.City(ip)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup for %s: %w", ipStr, err)
	}

	loc := Location{
		Country:  record.Country.Names["en"],
		City:     record.City.Names["en"],
		Timezone: record.Location.TimeZone,
	}
	if loc.Country == "" {
		loc.Country = record.Country.IsoCode
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// LookupVisitor adapts Lookup to the insights offline lookup. It returns nil
// when the database has nothing for ip.
func (r *Reader) LookupVisitor(ip string) (*insights.VisitorRecord, error) {
	loc, err := r.Lookup(ip)
	if err != nil {
		return nil, err
	}
	if loc == (Location{}) {
		return nil, nil
	}
	return insights.NewRecord(insights.VisitorRecord{
		IP:       ip,
		City:     loc.City,
		Region:   loc.Region,
		Country:  loc.Country,
		Timezone: loc.Timezone,
	}), nil
}

// Close releases the database.
func (r *Reader) Close() error {
	if r.Loaded() {
		return r.db.Close()
	}
	return nil
}

func download(ctx context.Context, opts Options, dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	url := opts.DownloadURL
	if url == "" {
		url = DefaultDownloadURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.L().Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	gzReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() {
		if err := gzReader.Close(); err != nil {
			logging.L().Debug("failed to close gzip reader", "error", err)
		}
	}()

	// Write to a temp file so a failed download never leaves a partial database.
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".geoip-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, gzReader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dbPath)
}
