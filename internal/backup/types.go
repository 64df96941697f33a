package backup

import (
	"io/fs"
	"time"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// ManifestVersion is the session manifest format.
const ManifestVersion = 1

// DefaultRetentionCount is how many sessions are kept per group.
const DefaultRetentionCount = 5

const manifestFile = "manifest.json"

var (
	// ErrNoBackupsFound indicates no sessions exist for the group.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrBackupCorrupted indicates a backed up file no longer matches its recorded hash.
	ErrBackupCorrupted = errors.New("backup corrupted")
)

// Manifest describes one backup session. It is stored as manifest.json in
// the session directory.
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Group     string    `json:"group"`
	Files     []File    `json:"files"`
	CKVersion string    `json:"ck_version"`

	// ID is the session directory name, filled when loading.
	ID string `json:"-"`
}

// File is one backed up file.
type File struct {
	OriginalPath string      `json:"original_path"`
	RelPath      string      `json:"rel_path"`
	SHA256Hash   string      `json:"sha256_hash"`
	Mode         fs.FileMode `json:"mode"`
}
