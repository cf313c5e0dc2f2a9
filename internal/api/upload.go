package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// Upload streams r to POST /upload as the multipart field "file" named
// filename. onProgress, when set, receives the running count of body bytes
// read from r. The returned Filename is the storage path to submit.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, onProgress ProgressFunc) (UploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return UploadResult{}, errors.New("upload filename is required")
	}
	if r == nil {
		return UploadResult{}, errors.New("upload reader is required")
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, &countingReader{r: r, onProgress: onProgress}); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", nil, pr)
	if err != nil {
		pr.Close()
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.send(c.transfer, req)
	if err != nil {
		pr.CloseWithError(err)
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if strings.TrimSpace(out.Filename) == "" {
		return UploadResult{}, errors.New("upload response missing filename")
	}
	return out, nil
}

type countingReader struct {
	r          io.Reader
	total      int64
	onProgress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.total += int64(n)
		if cr.onProgress != nil {
			cr.onProgress(cr.total)
		}
	}
	return n, err
}
