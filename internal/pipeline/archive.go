package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/metrics"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

const archiveHashLength = 16

// archivePath lays raw responses out as <date>/<run>/<kind>-<hash>.json.
func archivePath(at time.Time, runID string, kind spotify.Kind, hash string) string {
	if runID == "" {
		runID = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s-%s.json", at.Format("2006-01-02"), runID, kind, hash)
}

// archive stores the decoded response. Failures are logged and never
// affect the item.
func (p *Pipeline) archive(ctx context.Context, state *runState, kind spotify.Kind, doc map[string]any) {
	if p.deps.Archive == nil || p.deps.Hasher == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		metrics.ObserveArchiveWrite("error")
		p.logger.Warn("encode response for archive", zap.String("kind", kind.String()), zap.Error(err))
		return
	}
	path := archivePath(p.deps.Clock.Now(), state.id, kind, p.deps.Hasher.Short(data, archiveHashLength))
	uri, err := p.deps.Archive.PutObject(ctx, path, "application/json", bytes.NewReader(data))
	if err != nil {
		metrics.ObserveArchiveWrite("error")
		p.logger.Warn("archive response", zap.String("path", path), zap.Error(err))
		return
	}
	metrics.ObserveArchiveWrite("ok")
	p.logger.Debug("archived response", zap.String("uri", uri))
}

// notify publishes a saved-record event. Failures are logged only.
func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, state *runState, url, searchID string) {
	if p.opts.Topic == "" || p.deps.Publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":    state.id,
		"variant":   state.variant.Name,
		"url":       url,
		"search_id": searchID,
		"saved_at":  p.deps.Clock.Now().Format(time.RFC3339),
	}
	if _, err := p.deps.Publisher.Publish(ctx, p.opts.Topic, payload); err != nil {
		metrics.ObserveNotification("error")
		logger.Warn("publish save notification", zap.String("url", url), zap.Error(err))
		return
	}
	metrics.ObserveNotification("ok")
}
