// Package episodes exports recorded episodes from the persistent store to
// the artifact store.
package episodes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"falken/internal/blob"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"fmt"
	"path"
	"strconv"
	"time"
)

// Format selects an artifact encoding.
type Format string

const (
	// FormatJSON writes the brain record and the full episode as one document.
	FormatJSON Format = "json"
	// FormatCSV writes one row per step.
	FormatCSV Format = "csv"
)

// ParseFormat resolves a format name.
func ParseFormat(value string) (Format, error) {
	switch f := Format(value); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", value)
}

// DocumentVersion is written into every JSON artifact.
const DocumentVersion = 1

// Document is the JSON artifact of one episode.
type Document struct {
	Version    int                  `json:"version"`
	Brain      domain.BrainRecord   `json:"brain"`
	Episode    domain.EpisodeRecord `json:"episode"`
	ExportedAt time.Time            `json:"exported_at"`
}

// Filter selects which episodes are exported.
type Filter struct {
	// BrainID limits the export to one brain; empty exports every brain.
	BrainID string
	// IncludeOpen also exports episodes that are not completed or aborted.
	IncludeOpen bool
	// Force replaces artifacts that already exist.
	Force bool
}

// Report summarises an export run.
type Report struct {
	Written []blob.Info
	Skipped []string
	Errors  []error
}

// Err joins the per-artifact errors.
func (r Report) Err() error { return errors.Join(r.Errors...) }

// Key returns the artifact key of an episode in format.
func Key(ep domain.EpisodeRecord, format Format) string {
	session := ep.SessionID
	if session == "" {
		session = "_"
	}
	return path.Join("episodes", ep.BrainID, session, ep.ID+"."+string(format))
}

// Exporter copies episodes from a store into a blob store.
type Exporter struct {
	store   domain.PersistentStore
	blobs   blob.Store
	formats []Format
	log     *diag.Logger
	now     func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithFormats sets the artifact formats; the default is JSON only.
func WithFormats(formats ...Format) Option {
	return func(e *Exporter) {
		if len(formats) > 0 {
			e.formats = formats
		}
	}
}

// WithLogger routes export diagnostics to log.
func WithLogger(log *diag.Logger) Option {
	return func(e *Exporter) {
		if log != nil {
			e.log = log
		}
	}
}

// WithNow overrides the export timestamp clock.
func WithNow(fn func() time.Time) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewExporter constructs an exporter reading store and writing blobs.
func NewExporter(store domain.PersistentStore, blobs blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:   store,
		blobs:   blobs,
		formats: []Format{FormatJSON},
		log:     diag.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes every episode matching filter. A failed artifact does not
// stop the run; failures are collected in the report.
func (e *Exporter) Export(ctx context.Context, filter Filter) (Report, error) {
	var report Report
	if filter.BrainID != "" {
		if _, ok := e.store.GetBrain(filter.BrainID); !ok {
			return report, fmt.Errorf("export: brain %s not found", filter.BrainID)
		}
	}
	brains := make(map[string]domain.BrainRecord)
	for _, ep := range e.store.ListEpisodes(filter.BrainID) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !filter.IncludeOpen && !ep.State.Terminal() {
			continue
		}
		brain, ok := brains[ep.BrainID]
		if !ok {
			if brain, ok = e.store.GetBrain(ep.BrainID); !ok {
				report.Errors = append(report.Errors, fmt.Errorf("episode %s: brain %s not found", ep.ID, ep.BrainID))
				continue
			}
			brains[ep.BrainID] = brain
		}
		for _, format := range e.formats {
			info, skipped, err := e.exportOne(ctx, brain, ep, format, filter.Force)
			switch {
			case err != nil:
				e.log.Log(diag.LevelError, diag.Fields{"episode": ep.ID, "format": string(format)}, err.Error())
				report.Errors = append(report.Errors, err)
			case skipped:
				report.Skipped = append(report.Skipped, Key(ep, format))
			default:
				report.Written = append(report.Written, info)
			}
		}
	}
	e.log.Log(diag.LevelInfo, diag.Fields{
		"written": len(report.Written),
		"skipped": len(report.Skipped),
		"failed":  len(report.Errors),
	}, "episode export finished")
	return report, nil
}

func (e *Exporter) exportOne(ctx context.Context, brain domain.BrainRecord, ep domain.EpisodeRecord, format Format, force bool) (blob.Info, bool, error) {
	key := Key(ep, format)
	if _, err := e.blobs.Head(ctx, key); err == nil {
		if !force {
			return blob.Info{}, true, nil
		}
		if _, err := e.blobs.Delete(ctx, key); err != nil {
			return blob.Info{}, false, fmt.Errorf("replace %s: %w", key, err)
		}
	} else if !errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, false, fmt.Errorf("head %s: %w", key, err)
	}

	payload, contentType, err := e.render(brain, ep, format)
	if err != nil {
		return blob.Info{}, false, fmt.Errorf("render %s: %w", key, err)
	}
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"brain":   brain.ID,
			"episode": ep.ID,
			"state":   string(ep.State),
			"steps":   strconv.Itoa(len(ep.Steps)),
		},
	})
	if err != nil {
		return blob.Info{}, false, fmt.Errorf("put %s: %w", key, err)
	}
	return info, false, nil
}

func (e *Exporter) render(brain domain.BrainRecord, ep domain.EpisodeRecord, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(Document{
			Version:    DocumentVersion,
			Brain:      brain,
			Episode:    ep,
			ExportedAt: e.now(),
		}, "", "  ")
		return data, "application/json", err
	case FormatCSV:
		data, err := renderCSV(ep)
		return data, "text/csv", err
	}
	return nil, "", fmt.Errorf("unknown export format %q", format)
}

func renderCSV(ep domain.EpisodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"index", "source", "recorded_at", "observations", "actions"}}
	for _, s := range ep.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.Source,
			s.RecordedAt.UTC().Format(time.RFC3339Nano),
			string(s.Observations),
			string(s.Actions),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads an exported JSON document back.
func Load(ctx context.Context, blobs blob.Store, key string) (Document, error) {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if doc.Version != DocumentVersion {
		return Document{}, fmt.Errorf("decode %s: unsupported version %d", key, doc.Version)
	}
	return doc, nil
}
