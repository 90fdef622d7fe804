package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Writer keeps an audit copy of every submitted image in a local directory.
// Files are named by capture timestamp; a short uuid suffix keeps two
// submissions in the same second from colliding.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// SaveImage writes the image bytes and returns the file path.
func (w *Writer) SaveImage(image []byte, capturedAt time.Time) (string, error) {
	name := fmt.Sprintf("shop_%s_%s.jpg",
		capturedAt.Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", fmt.Errorf("failed to write audit image: %w", err)
	}
	return path, nil
}
