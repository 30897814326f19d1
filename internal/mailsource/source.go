// Package mailsource fetches bank notifications and maps them into
// domain.Message values at the system boundary.
package mailsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/gcs"
	"github.com/dvloznov/bankmail-ledger/internal/labels"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

// Source returns the messages waiting to be processed.
type Source interface {
	Fetch(ctx context.Context) ([]domain.Message, error)
}

// StaticSource returns a fixed list of messages.
type StaticSource struct {
	Messages []domain.Message
}

func (s StaticSource) Fetch(ctx context.Context) ([]domain.Message, error) {
	out := make([]domain.Message, len(s.Messages))
	copy(out, s.Messages)
	return out, nil
}

// parseFile maps a stored message by its extension. ok is false for files
// that are not messages. The id is always the storage name so labels can be
// applied to it later. A payload that cannot be mapped is returned with
// DecodeErr set rather than dropped, so it is escalated like any other
// undecodable message.
func parseFile(id string, raw []byte) (msg domain.Message, ok bool) {
	switch strings.ToLower(path.Ext(id)) {
	case ".eml":
		msg = ParseRFC822(id, raw)
	case ".json":
		var err error
		if msg, err = ParseJSON(id, raw); err != nil {
			if !errors.Is(err, domain.ErrEncoding) {
				err = fmt.Errorf("%w: %w", domain.ErrEncoding, err)
			}
			msg = domain.Message{DecodeErr: err}
		}
	default:
		return domain.Message{}, false
	}
	msg.ID = id
	return msg, true
}

// DirSource reads .eml and .json files from a directory. Files that already
// have a label sidecar are skipped. Message ids are file names.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Fetch(ctx context.Context) ([]domain.Message, error) {
	log := logger.FromContext(ctx)

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("DirSource.Fetch: %w: %w", domain.ErrTransport, err)
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}

	var msgs []domain.Message
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), labels.SidecarSuffix) {
			continue
		}
		if names[e.Name()+labels.SidecarSuffix] {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("DirSource.Fetch: %w: %w", domain.ErrTransport, err)
		}
		msg, ok := parseFile(e.Name(), raw)
		if !ok {
			continue
		}
		if msg.DecodeErr != nil {
			log.Warn().Err(msg.DecodeErr).Str("file", e.Name()).Msg("Message file could not be decoded")
		}
		msgs = append(msgs, msg)
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// GCSSource reads .eml and .json objects under a prefix. Objects carrying a
// label in labels.MetadataKey are skipped. Message ids are object names.
type GCSSource struct {
	store  gcs.ObjectStore
	prefix string
}

func NewGCSSource(store gcs.ObjectStore, prefix string) *GCSSource {
	return &GCSSource{store: store, prefix: prefix}
}

func (g *GCSSource) Fetch(ctx context.Context) ([]domain.Message, error) {
	log := logger.FromContext(ctx)

	objects, err := g.store.List(ctx, g.prefix)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w: %w", domain.ErrTransport, err)
	}

	var msgs []domain.Message
	for _, obj := range objects {
		if obj.Metadata[labels.MetadataKey] != "" {
			continue
		}
		if ext := strings.ToLower(path.Ext(obj.Name)); ext != ".eml" && ext != ".json" {
			continue
		}

		raw, err := g.store.Read(ctx, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("GCSSource.Fetch: %s: %w: %w", obj.Name, domain.ErrTransport, err)
		}
		msg, _ := parseFile(obj.Name, raw)
		if msg.DecodeErr != nil {
			log.Warn().Err(msg.DecodeErr).Str("object", obj.Name).Msg("Message object could not be decoded")
		}
		msgs = append(msgs, msg)
	}

	log.Debug().Int("count", len(msgs)).Str("prefix", g.prefix).Msg("Fetched messages from bucket")
	return msgs, nil
}

var (
	_ Source = StaticSource{}
	_ Source = (*DirSource)(nil)
	_ Source = (*GCSSource)(nil)
)
