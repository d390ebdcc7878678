package report

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/fsutil"
)

// ErrOutput is returned when the report destination cannot be created or
// written.
var ErrOutput = errors.New("writing report output failed")

// File is one written report artifact.
type File struct {
	Format      string
	Path        string
	ContentType string
	Size        int64
}

// Render renders the matrix in one format.
func Render(m *Matrix, format string) ([]byte, Writer, error) {
	w, err := NewWriter(format)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := w.Write(&buf, m); err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), w, nil
}

// WriteFiles renders the matrix in every format and writes each one to
// <dir>/<baseName>.<ext>. Files are replaced atomically.
func WriteFiles(
	log logrus.FieldLogger,
	m *Matrix,
	dir, baseName string,
	formats []string,
	owner *fsutil.OwnerConfig,
) ([]File, error) {
	if err := fsutil.MkdirAll(dir, 0o755, owner); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrOutput, dir, err)
	}

	files := make([]File, 0, len(formats))

	for _, format := range formats {
		data, w, err := Render(m, format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutput, err)
		}

		path := filepath.Join(dir, baseName+"."+w.Extension())

		if err := fsutil.WriteFileAtomic(path, data, 0o644, owner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutput, err)
		}

		log.WithFields(logrus.Fields{
			"format": format,
			"path":   path,
			"size":   units.HumanSize(float64(len(data))),
		}).Info("Wrote report")

		files = append(files, File{
			Format:      format,
			Path:        path,
			ContentType: w.ContentType(),
			Size:        int64(len(data)),
		})
	}

	return files, nil
}
