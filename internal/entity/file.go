package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableFiles indexes uploaded files by storage path.
const TableFiles = "bot_files"

// FileCategory buckets uploads for the file browser.
type FileCategory string

const (
	FileContext  FileCategory = "context"
	FileTemplate FileCategory = "template"
	FileAsset    FileCategory = "asset"
	FileExport   FileCategory = "export"
)

// File is one uploaded file's index row. The bytes live in object storage
// under Path; only the metadata syncs through the collection.
type File struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Path      string       `db:"path" json:"path"`
	SizeBytes *int64       `db:"size_bytes" json:"size_bytes"`
	MimeType  *string      `db:"mime_type" json:"mime_type"`
	Category  FileCategory `db:"category" json:"category"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

func (f File) EntityID() string { return f.ID }

// FileDefaults buckets uncategorized uploads as context material.
func FileDefaults(f File) File {
	if f.Category == "" {
		f.Category = FileContext
	}
	return f
}

// ValidateFile rejects rows without a name, path, or known category.
func ValidateFile(f File) error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if f.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	switch f.Category {
	case FileContext, FileTemplate, FileAsset, FileExport:
	default:
		errs = append(errs, fmt.Errorf("unknown category %q", f.Category))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableFiles, Reason: "file", Err: err}
	}
	return nil
}

// FileLess sorts newest first.
func FileLess(a, b File) bool { return a.CreatedAt.After(b.CreatedAt) }
