package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/stockdash/internal/core"
	"go.uber.org/zap"
)

const (
	exportRoot      = "watchlists"
	anonymousUser   = "anonymous"
	timestampLayout = "20060102T150405Z"
)

// Snapshot is the document stored for one export.
type Snapshot struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Active     string           `json:"active,omitempty"`
	Watchlists []core.Watchlist `json:"watchlists"`
}

// ExportInfo identifies a stored export.
type ExportInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportRecorder counts export attempts.
type ExportRecorder interface {
	RecordExport(status string)
}

// Exporter writes watchlist snapshots to a Storage.
type Exporter struct {
	store    Storage
	logger   *zap.Logger
	recorder ExportRecorder
	now      func() time.Time
}

// ExporterOption configures an Exporter
type ExporterOption func(*Exporter)

func WithExportLogger(l *zap.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

func WithExportRecorder(r ExportRecorder) ExporterOption {
	return func(e *Exporter) { e.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an Exporter over store.
func NewExporter(store Storage, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export stores lists under watchlists/<user>/<timestamp>-<id>.json.
func (e *Exporter) Export(ctx context.Context, userID, active string, lists []core.Watchlist) (ExportInfo, error) {
	snap := Snapshot{
		ID:         uuid.NewString(),
		UserID:     userID,
		CreatedAt:  e.now().UTC().Truncate(time.Second),
		Active:     active,
		Watchlists: lists,
	}
	if snap.Watchlists == nil {
		snap.Watchlists = []core.Watchlist{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		e.record("error")
		return ExportInfo{}, core.WrapError(core.ErrArchiveFailed, err)
	}

	p := path.Join(userDir(userID), snap.CreatedAt.Format(timestampLayout)+"-"+snap.ID+".json")
	if err := e.store.Write(ctx, p, data); err != nil {
		e.record("error")
		e.logger.Error("export failed", zap.String("path", p), zap.Error(err))
		return ExportInfo{}, core.WrapError(core.ErrArchiveFailed, err)
	}

	e.record("success")
	e.logger.Info("watchlists exported",
		zap.String("path", p),
		zap.Int("watchlists", len(snap.Watchlists)),
	)
	return ExportInfo{ID: snap.ID, Path: p, CreatedAt: snap.CreatedAt}, nil
}

// List returns the user's exports, newest first.
func (e *Exporter) List(ctx context.Context, userID string) ([]ExportInfo, error) {
	paths, err := e.store.List(ctx, userDir(userID))
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	out := make([]ExportInfo, 0, len(paths))
	for _, p := range paths {
		info, ok := parseExportPath(p)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// Read loads the export with the given ID for userID.
func (e *Exporter) Read(ctx context.Context, userID, id string) (*Snapshot, error) {
	info, err := e.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	data, err := e.store.Read(ctx, info.Path)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decoding %s: %w", info.Path, err))
	}
	return &snap, nil
}

// Delete removes the export with the given ID for userID.
func (e *Exporter) Delete(ctx context.Context, userID, id string) error {
	info, err := e.find(ctx, userID, id)
	if err != nil {
		return err
	}

	ok, err := e.store.Exists(ctx, info.Path)
	if err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	if !ok {
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("export %s: %w", id, ErrNotExist))
	}
	if err := e.store.Delete(ctx, info.Path); err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}

	e.logger.Info("export deleted", zap.String("path", info.Path))
	return nil
}

func (e *Exporter) find(ctx context.Context, userID, id string) (ExportInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ExportInfo{}, core.WrapError(core.ErrInvalidInput, fmt.Errorf("export id %q: %w", id, err))
	}

	exports, err := e.List(ctx, userID)
	if err != nil {
		return ExportInfo{}, err
	}
	for _, info := range exports {
		if info.ID == id {
			return info, nil
		}
	}
	return ExportInfo{}, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("export %s: %w", id, ErrNotExist))
}

func (e *Exporter) record(status string) {
	if e.recorder != nil {
		e.recorder.RecordExport(status)
	}
}

func userDir(userID string) string {
	if userID == "" {
		userID = anonymousUser
	}
	return path.Join(exportRoot, strings.ReplaceAll(userID, "/", "_"))
}

// parseExportPath splits ".../<timestamp>-<uuid>.json".
func parseExportPath(p string) (ExportInfo, bool) {
	base := strings.TrimSuffix(path.Base(p), ".json")
	if base == path.Base(p) {
		return ExportInfo{}, false
	}
	ts, id, ok := strings.Cut(base, "-")
	if !ok {
		return ExportInfo{}, false
	}
	created, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return ExportInfo{}, false
	}
	if _, err := uuid.Parse(id); err != nil {
		return ExportInfo{}, false
	}
	return ExportInfo{ID: id, Path: p, CreatedAt: created}, true
}

// IsNotFound reports whether err means the export does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotExist)
}
