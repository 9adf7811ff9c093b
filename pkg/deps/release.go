package deps

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
	"github.com/helmfile2compose/kubernetes2simple/pkg/version"
)

const (
	defaultIndexBaseURL = "https://api.github.com"

	// maxIndexResponseBytes bounds release index responses.
	maxIndexResponseBytes = 1 << 20

	// maxDownloadBytes bounds tool archives and scripts.
	maxDownloadBytes = 256 << 20
)

// releaseIndex is the JSON wire format for a release index entry. Only the
// tag is consumed; everything else the index returns is ignored.
type releaseIndex struct {
	TagName string `json:"tag_name"`
}

// IndexClient resolves the latest published release tag for a repository.
type IndexClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// IndexOption configures an IndexClient during construction.
type IndexOption func(*IndexClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) IndexOption {
	return func(ic *IndexClient) {
		ic.httpClient = c
	}
}

// WithBaseURL overrides the release index base URL, primarily for test
// servers.
func WithBaseURL(base string) IndexOption {
	return func(ic *IndexClient) {
		ic.baseURL = strings.TrimRight(base, "/")
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) IndexOption {
	return func(ic *IndexClient) {
		ic.userAgent = ua
	}
}

// NewIndexClient creates an IndexClient with default endpoints.
func NewIndexClient(opts ...IndexOption) *IndexClient {
	ic := &IndexClient{
		httpClient: http.DefaultClient,
		baseURL:    defaultIndexBaseURL,
		userAgent:  "k2s/" + version.GetVersion(),
	}
	for _, opt := range opts {
		opt(ic)
	}

	return ic
}

// LatestTag returns the tag of the latest published release of owner/repo,
// e.g. "v3.15.2".
func (ic *IndexClient) LatestTag(ctx context.Context, owner, repo string) (string, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", ic.baseURL, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", ic.userAgent)

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query release index: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body.

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query release index: %s returned %s", reqURL, resp.Status)
	}

	var ri releaseIndex
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&ri); err != nil {
		return "", fmt.Errorf("decode release index: %w", err)
	}

	if ri.TagName == "" {
		return "", errors.New("release index entry has no tag")
	}

	return ri.TagName, nil
}

// DownloadFile fetches url into dest, creating parent directories as needed
// and setting the given file mode. Writes go through a temporary file so a
// partial download never lands at dest.
func (ic *IndexClient) DownloadFile(ctx context.Context, url, dest string, mode os.FileMode) error {
	body, size, err := ic.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck // Read-only body.

	log.WithContext(ctx).DebugContext(ctx, "downloading",
		slog.String("url", url),
		slog.String("size", humanize.Bytes(uint64(max(size, 0)))), //nolint:gosec // Clamped non-negative.
	)

	return writeAtomic(dest, mode, func(w io.Writer) error {
		_, err := io.Copy(w, io.LimitReader(body, maxDownloadBytes))

		return err
	})
}

// DownloadArchiveBinary fetches a gzipped tarball from url and extracts the
// archive member at memberPath into dest as an executable file.
func (ic *IndexClient) DownloadArchiveBinary(ctx context.Context, url, memberPath, dest string) error {
	body, size, err := ic.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck // Read-only body.

	log.WithContext(ctx).DebugContext(ctx, "downloading archive",
		slog.String("url", url),
		slog.String("member", memberPath),
		slog.String("size", humanize.Bytes(uint64(max(size, 0)))), //nolint:gosec // Clamped non-negative.
	)

	gz, err := gzip.NewReader(io.LimitReader(body, maxDownloadBytes))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer gz.Close() //nolint:errcheck // Read-only stream.

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("archive member %q not found in %s", memberPath, url)
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg || filepath.Clean(hdr.Name) != memberPath {
			continue
		}

		return writeAtomic(dest, 0o755, func(w io.Writer) error {
			_, err := io.Copy(w, io.LimitReader(tr, maxDownloadBytes))

			return err
		})
	}
}

func (ic *IndexClient) get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", ic.userAgent)

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck // Read-only body.

		return nil, 0, fmt.Errorf("download %s: %s", url, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}

// writeAtomic writes through a temporary sibling and renames into place.
func writeAtomic(dest string, mode os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	if err := fill(tmp); err != nil {
		tmp.Close()           //nolint:errcheck // Best effort on failure.
		os.Remove(tmp.Name()) //nolint:errcheck // Best effort on failure.

		return fmt.Errorf("write %s: %w", dest, err)
	}

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()           //nolint:errcheck // Best effort on failure.
		os.Remove(tmp.Name()) //nolint:errcheck // Best effort on failure.

		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // Best effort on failure.

		return fmt.Errorf("close %s: %w", dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // Best effort on failure.

		return fmt.Errorf("move into place: %w", err)
	}

	return nil
}
