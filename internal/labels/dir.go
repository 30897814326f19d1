package labels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// SidecarSuffix is appended to a message file name to form its label file.
const SidecarSuffix = ".label"

// DirLabeler labels messages stored as files in a directory by writing a
// sidecar file next to each message. Message ids are file names.
type DirLabeler struct {
	dir string
}

func NewDirLabeler(dir string) *DirLabeler {
	return &DirLabeler{dir: dir}
}

// Ensure implements Labeler. Directory labels need no registration.
func (d *DirLabeler) Ensure(ctx context.Context, name string) (Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Label{}, fmt.Errorf("Ensure: label name is required")
	}
	return Label{ID: slug(name), Name: name}, nil
}

// Apply implements Labeler.
func (d *DirLabeler) Apply(ctx context.Context, messageID string, label Label) error {
	path := filepath.Join(d.dir, filepath.Base(messageID)+SidecarSuffix)
	if err := os.WriteFile(path, []byte(label.Name+"\n"), 0o644); err != nil {
		return fmt.Errorf("Apply: %w: %w", domain.ErrTransport, err)
	}
	return nil
}

// Read returns the label recorded for messageID, if any.
func (d *DirLabeler) Read(messageID string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(d.dir, filepath.Base(messageID)+SidecarSuffix))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

var _ Labeler = (*DirLabeler)(nil)
