package library

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const sidecarExtension = ".toml"

// Sidecar is the optional metadata file stored next to an imported book as <name>.toml.
type Sidecar struct {
	Title       string `toml:"title"`
	Author      string `toml:"author"`
	Description string `toml:"description"`
	Public      *bool  `toml:"public"`
}

// ImportReport lists the outcome of a directory import.
type ImportReport struct {
	Imported []string
	Skipped  []string
}

// Importer registers the books found in a directory.
type Importer struct {
	catalog *Service
	fs      afero.Fs
	owner   reading.UserID
	logger  *zap.Logger
}

// NewImporter constructs an Importer that records owner as the uploader.
func NewImporter(catalog *Service, fs afero.Fs, owner reading.UserID, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{catalog: catalog, fs: fs, owner: owner, logger: logger}
}

// Import uploads every supported file in directory. Files that fail validation or already exist are skipped.
func (i *Importer) Import(ctx context.Context, directory string) (ImportReport, error) {
	entries, err := afero.ReadDir(i.fs, directory)
	if err != nil {
		return ImportReport{}, newServiceError(opImport, reasonIO, err)
	}

	report := ImportReport{Imported: []string{}, Skipped: []string{}}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if entry.IsDir() {
			continue
		}
		extension := strings.ToLower(path.Ext(entry.Name()))
		if _, supported := extensionContentTypes[extension]; !supported {
			continue
		}

		filePath := path.Join(directory, entry.Name())
		book, err := i.importFile(ctx, filePath, extension)
		if err != nil {
			if isSkippable(err) {
				i.logger.Info("import skipped", zap.String("file", filePath), zap.Error(err))
				report.Skipped = append(report.Skipped, entry.Name())
				continue
			}
			return report, err
		}
		report.Imported = append(report.Imported, book.BookName)
	}
	return report, nil
}

func (i *Importer) importFile(ctx context.Context, filePath, extension string) (Book, error) {
	data, err := afero.ReadFile(i.fs, filePath)
	if err != nil {
		return Book{}, newServiceError(opImport, reasonIO, err)
	}

	base := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	sidecar, err := i.readSidecar(path.Join(path.Dir(filePath), base+sidecarExtension))
	if err != nil {
		return Book{}, err
	}

	title := strings.TrimSpace(sidecar.Title)
	if title == "" {
		title = titleFromFileName(base)
	}
	isPublic := true
	if sidecar.Public != nil {
		isPublic = *sidecar.Public
	}

	return i.catalog.Upload(ctx, i.owner, UploadRequest{
		Title:       title,
		Author:      sidecar.Author,
		Description: sidecar.Description,
		IsPublic:    isPublic,
		FileName:    path.Base(filePath),
		ContentType: extensionContentTypes[extension],
		Data:        data,
	})
}

func (i *Importer) readSidecar(sidecarPath string) (Sidecar, error) {
	var sidecar Sidecar
	data, err := afero.ReadFile(i.fs, sidecarPath)
	if errors.Is(err, os.ErrNotExist) {
		return sidecar, nil
	}
	if err != nil {
		return sidecar, newServiceError(opImport, reasonIO, err)
	}
	if err := toml.Unmarshal(data, &sidecar); err != nil {
		return sidecar, newServiceError(opImport, "invalid_sidecar", err)
	}
	return sidecar, nil
}

func titleFromFileName(base string) string {
	title := strings.ReplaceAll(base, "_", " ")
	title = strings.ReplaceAll(title, "-", " ")
	return strings.Join(strings.Fields(title), " ")
}

func isSkippable(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		code := serviceErr.Code()
		if strings.HasSuffix(code, ".invalid_sidecar") || strings.HasSuffix(code, "."+reasonNormalize) {
			return true
		}
	}
	return errors.Is(err, ErrDuplicateBook) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrMissingTitle) ||
		errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, reading.ErrInvalidBookName)
}
