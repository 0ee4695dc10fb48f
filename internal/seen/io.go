package seen

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jimezsa/jobparser/internal/models"
)

// ReadListings reads listings from path. Both a JSON array (crawl --format
// json, history files) and JSON lines (crawl --stream) are accepted.
func ReadListings(path string) ([]models.Listing, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	listings, err := decodeListings(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return listings, nil
}

// ReadListingsAllowMissing treats a missing file as empty history.
func ReadListingsAllowMissing(path string) ([]models.Listing, error) {
	listings, err := ReadListings(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Listing{}, nil
	}
	return listings, err
}

func decodeListings(data []byte) ([]models.Listing, error) {
	data = bytes.TrimSpace(data)
	listings := []models.Listing{}
	if len(data) == 0 {
		return listings, nil
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &listings); err != nil {
			return nil, err
		}
		if listings == nil {
			listings = []models.Listing{}
		}
		return listings, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for line := 1; ; line++ {
		var listing models.Listing
		err := dec.Decode(&listing)
		if errors.Is(err, io.EOF) {
			return listings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		listings = append(listings, listing)
	}
}

// WriteListings writes listings as pretty JSON. The file is replaced
// atomically so an interrupted write never truncates the history.
func WriteListings(path string, listings []models.Listing) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	if listings == nil {
		listings = []models.Listing{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(listings); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
