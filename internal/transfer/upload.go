package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"transcoderctl/internal/submission"
)

// UploadFile is a local source opened for upload.
type UploadFile struct {
	Path string
	Name string
	Size int64
	file *os.File
}

// OpenUpload opens path for reading and reports its size.
func OpenUpload(path string) (*UploadFile, error) {
	if path == "" {
		return nil, errors.New("no file selected")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := checkReadable(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &UploadFile{Path: path, Name: filepath.Base(path), Size: info.Size(), file: f}, nil
}

func (u *UploadFile) Read(p []byte) (int, error) {
	return u.file.Read(p)
}

func (u *UploadFile) Close() error {
	return u.file.Close()
}

// Source adapts the file for a submission draft.
func (u *UploadFile) Source() submission.UploadSource {
	return submission.UploadSource{Name: u.Name, Reader: u, Size: u.Size}
}
