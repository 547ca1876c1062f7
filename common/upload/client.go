// Package upload sends crash reports the way Breakpad/Crashpad style
// reporters do: one multipart/form-data POST per crash.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iqoption/crashcollector/common/utils"
)

// MinidumpPart is the form part name used for the minidump file.
const MinidumpPart = "upload_file_minidump"

type Client struct {
	URL        string
	HTTPClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{URL: url, HTTPClient: http.DefaultClient}
}

// Send uploads fields and files (part name -> path on disk) and returns the
// report id the collector answered with.
func (c *Client) Send(ctx context.Context, fields map[string]string, files map[string]string) (string, error) {
	body, contentType, err := Encode(fields, files)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	req.Header.Set("Content-Type", contentType)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("upload failed: %s: %s", resp.Status, utils.Trim(string(data)))
	}

	id := utils.Trim(string(data))
	log.WithFields(log.Fields{
		"url": c.URL,
		"id":  id,
	}).Debug("Crash uploaded")
	return id, nil
}

// Encode builds a multipart body. Fields are written in sorted order so the
// body is deterministic.
func Encode(fields map[string]string, files map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(fields) {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", errors.Wrap(err, 0)
		}
	}

	for _, name := range sortedKeys(files) {
		if err := writeFile(w, name, files[name]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, 0)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapPrefix(err, fmt.Sprintf("open %s part", name), 0)
	}
	defer f.Close()

	part, err := w.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if _, err := io.Copy(part, f); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
