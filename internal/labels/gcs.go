package labels

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/gcs"
)

// MetadataKey is the object metadata key holding a message's label.
const MetadataKey = "bankledger-label"

// GCSLabeler labels messages stored as Cloud Storage objects. Labels are
// registered as marker objects under registry/ and applied as object
// metadata; message ids are object names.
type GCSLabeler struct {
	store    gcs.ObjectStore
	registry string
}

// NewGCSLabeler returns a labeler keeping its registry under registryPrefix.
func NewGCSLabeler(store gcs.ObjectStore, registryPrefix string) *GCSLabeler {
	return &GCSLabeler{store: store, registry: registryPrefix}
}

// Ensure implements Labeler. The marker object is created only if missing.
func (g *GCSLabeler) Ensure(ctx context.Context, name string) (Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Label{}, fmt.Errorf("Ensure: label name is required")
	}

	id := path.Join(g.registry, slug(name))
	if _, err := g.store.CreateIfAbsent(ctx, id, []byte(name)); err != nil {
		return Label{}, fmt.Errorf("Ensure: %s: %w: %w", name, domain.ErrTransport, err)
	}
	return Label{ID: id, Name: name}, nil
}

// Apply implements Labeler.
func (g *GCSLabeler) Apply(ctx context.Context, messageID string, label Label) error {
	if err := g.store.SetMetadata(ctx, messageID, MetadataKey, label.Name); err != nil {
		return fmt.Errorf("Apply: %w: %w", domain.ErrTransport, err)
	}
	return nil
}

// slug turns a label name such as "BankTransactions/Processed" into a
// single path element.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ Labeler = (*GCSLabeler)(nil)
