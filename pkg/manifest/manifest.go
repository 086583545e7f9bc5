// Package manifest models the list of files a portal instance asks the client
// to retrieve. Manifests are tab-separated files with a header row; every data
// row names one file by opaque ID together with its expected MD5 digest and a
// comma-separated list of candidate URLs across different protocols.
package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// Entry represents one remote file to download.
type Entry struct {
	// ID is the opaque identifier assigned by the portal.
	ID string

	// MD5 is the expected hex-encoded digest of the file content.
	MD5 string

	// Size is the advertised file size in bytes. Informational only; the
	// authoritative size comes from the chosen endpoint at transfer time.
	Size int64

	// URLs lists the candidate source locations, each prefixed with a
	// protocol scheme (http, https, ftp, s3, fasp). May be empty.
	URLs []string
}

// Column names recognized in the manifest header. The portal has shipped a few
// header variants over time, so each logical column accepts aliases.
var (
	idColumns   = []string{"id", "file_id"}
	md5Columns  = []string{"md5", "checksum"}
	sizeColumns = []string{"size", "bytes"}
	urlsColumns = []string{"urls", "url"}
)

// Parse reads a tab-separated manifest from r. The first non-empty line must
// be a header naming at least the id, md5 and urls columns. Rows without any
// URL are kept: the selection stage reports them as having no valid endpoint
// instead of rejecting them at parse time.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header map[string]int
	var entries []Entry
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")

		if header == nil {
			var err error
			header, err = parseHeader(fields)
			if err != nil {
				return nil, err
			}
			continue
		}

		entry, err := parseRow(fields, header)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	if header == nil {
		return nil, errors.Wrap(errors.ErrManifestParse, "manifest is empty")
	}

	return entries, nil
}

// FromFile reads and parses a locally stored manifest file.
func FromFile(path string) ([]Entry, error) {
	if path == "" {
		return nil, errors.ErrEmptyManifestPath
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	defer func() { _ = file.Close() }()

	return Parse(file)
}

// FromURL downloads a manifest stored at an HTTP(S) endpoint and parses it.
func FromURL(ctx context.Context, rawURL string, timeout time.Duration) ([]Entry, error) {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create manifest request")
	}
	req.Header.Set("User-Agent", "portalfetch/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrManifestFetch, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrManifestFetch, "unexpected status code: %d", resp.StatusCode)
	}

	return Parse(resp.Body)
}

func parseHeader(fields []string) (map[string]int, error) {
	header := make(map[string]int, len(fields))
	for i, name := range fields {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range [][]string{idColumns, md5Columns, urlsColumns} {
		if _, ok := findColumn(header, required); !ok {
			return nil, errors.Wrapf(errors.ErrManifestParse,
				"header is missing a %q column", required[0])
		}
	}
	return header, nil
}

func parseRow(fields []string, header map[string]int) (Entry, error) {
	get := func(aliases []string) string {
		idx, ok := findColumn(header, aliases)
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	entry := Entry{
		ID:  get(idColumns),
		MD5: strings.ToLower(get(md5Columns)),
	}
	if entry.ID == "" {
		return Entry{}, fmt.Errorf("row has no file ID: %w", errors.ErrManifestParse)
	}

	if sizeStr := get(sizeColumns); sizeStr != "" {
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("bad size %q: %w", sizeStr, errors.ErrManifestParse)
		}
		entry.Size = size
	}

	for _, u := range strings.Split(get(urlsColumns), ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			entry.URLs = append(entry.URLs, u)
		}
	}

	return entry, nil
}

func findColumn(header map[string]int, aliases []string) (int, bool) {
	for _, name := range aliases {
		if idx, ok := header[name]; ok {
			return idx, true
		}
	}
	return 0, false
}
