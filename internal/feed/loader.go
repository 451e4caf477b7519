package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
)

// CatalogReceiver is the engine-side hook a loader pushes snapshots into.
type CatalogReceiver interface {
	SubmitCatalog(hazards []types.HazardPoint, corridors []types.AverageZoneCorridor)
}

// Loader fetches the hazard feed from an HTTP URL or local file, parses
// it, and hands the validated snapshot to the engine runner. An optional
// reload interval keeps the catalog fresh during long sessions.
type Loader struct {
	cfg      config.FeedData
	receiver CatalogReceiver
	client   *http.Client

	mu         sync.Mutex
	lastLoaded time.Time
	lastResult *Result
}

// NewLoader builds a loader for the configured feed location.
func NewLoader(cfg config.FeedData, receiver CatalogReceiver) (*Loader, error) {
	if cfg.URL == "" && cfg.Path == "" {
		return nil, fmt.Errorf("feed requires either a url or a path")
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Loader{
		cfg:      cfg,
		receiver: receiver,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Start performs the initial load and, when a reload interval is
// configured, keeps reloading until the context is cancelled. The initial
// load failing is fatal to startup; later reload failures keep the
// previous catalog and log.
func (l *Loader) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := l.Reload(ctx); err != nil {
		return fmt.Errorf("initial hazard feed load failed: %w", err)
	}

	if l.cfg.ReloadIntervalSecs <= 0 {
		return nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(l.cfg.ReloadIntervalSecs) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := l.Reload(ctx); err != nil {
					log.Errorf("hazard feed reload failed, keeping previous catalog: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Reload fetches and parses the feed once and pushes the result to the
// engine. Also used by the status API's reload endpoint.
func (l *Loader) Reload(ctx context.Context) error {
	raw, err := l.fetch(ctx)
	if err != nil {
		return err
	}

	res, err := Parse(raw, l.cfg.DefaultSpeedUnit)
	if err != nil {
		return err
	}

	if res.Total == 0 && l.cfg.FailOnEmptyCatalog {
		return fmt.Errorf("feed produced an empty catalog")
	}
	if maxSkip := l.cfg.MaxRecordSkipPercent; maxSkip > 0 && res.Total > 0 {
		if res.Skipped*100/res.Total > maxSkip {
			return fmt.Errorf("feed skipped %d of %d records, over the %d%% limit",
				res.Skipped, res.Total, maxSkip)
		}
	}

	if res.Skipped > 0 {
		log.Warnf("hazard feed: skipped %d of %d malformed records", res.Skipped, res.Total)
	}
	log.Infof("hazard feed loaded: %d hazards, %d corridors", len(res.Hazards), len(res.Corridors))

	l.receiver.SubmitCatalog(res.Hazards, res.Corridors)

	l.mu.Lock()
	l.lastLoaded = time.Now()
	l.lastResult = res
	l.mu.Unlock()

	return nil
}

// LastLoad reports when the feed last loaded successfully and the skip
// accounting of that load.
func (l *Loader) LastLoad() (time.Time, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastResult == nil {
		return l.lastLoaded, 0, 0
	}
	return l.lastLoaded, l.lastResult.Skipped, l.lastResult.Total
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.cfg.Path != "" {
		raw, err := os.ReadFile(l.cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("reading feed file: %w", err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
