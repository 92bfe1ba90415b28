package maven

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"time"

	"schemagen/internal/cache/localrepo"
)

// DefaultRepository is Maven Central.
const DefaultRepository = "https://repo.maven.apache.org/maven2"

// ErrNotFound reports that no configured repository serves a path.
var ErrNotFound = errors.New("artifact not found in any repository")

// FetchError wraps a transport or HTTP failure for one repository path.
type FetchError struct {
	Repository string
	Path       string
	Status     int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s/%s: http %d", e.Repository, e.Path, e.Status)
	}
	return fmt.Sprintf("fetch %s/%s: %v", e.Repository, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChecksumError reports a download whose SHA-1 differs from its sidecar.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

type ClientConfig struct {
	Repositories    []string
	HTTPClient      *http.Client
	VerifyChecksums bool
	UserAgent       string
}

// Client reads Maven2-layout repositories over HTTP and stores immutable
// files in the shared local cache.
type Client struct {
	repos     []string
	http      *http.Client
	cache     *localrepo.Store
	verify    bool
	userAgent string
}

func NewClient(cache *localrepo.Store, cfg ClientConfig) (*Client, error) {
	if cache == nil {
		return nil, fmt.Errorf("local cache is required")
	}
	repos := make([]string, 0, len(cfg.Repositories))
	for _, r := range cfg.Repositories {
		r = strings.TrimRight(strings.TrimSpace(r), "/")
		if r != "" {
			repos = append(repos, r)
		}
	}
	if len(repos) == 0 {
		repos = []string{DefaultRepository}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "schemagen/1"
	}
	return &Client{
		repos:     repos,
		http:      hc,
		cache:     cache,
		verify:    cfg.VerifyChecksums,
		userAgent: ua,
	}, nil
}

func (c *Client) Repositories() []string {
	return append([]string(nil), c.repos...)
}

// Fetch returns the local path of a repository file, downloading it into the
// cache on a miss.
func (c *Client) Fetch(ctx context.Context, rel string) (string, error) {
	return c.cache.GetOrFill(ctx, rel, func(ctx context.Context) (io.ReadCloser, error) {
		return c.open(ctx, rel)
	})
}

// open tries each repository in order. 404/410 fall through; the last
// other failure is reported when nothing serves the path.
func (c *Client) open(ctx context.Context, rel string) (io.ReadCloser, error) {
	var lastErr error
	for _, repo := range c.repos {
		body, err := c.get(ctx, repo, rel)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			lastErr = err
			continue
		}
		if !c.verify {
			return body, nil
		}
		expected, err := c.sidecar(ctx, repo, rel+".sha1")
		if err != nil {
			body.Close()
			lastErr = err
			continue
		}
		if expected == "" {
			return body, nil
		}
		return &verifyingReader{rc: body, h: sha1.New(), expected: expected, path: rel}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
}

func (c *Client) get(ctx context.Context, repo, rel string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, repo+"/"+rel, nil)
	if err != nil {
		return nil, &FetchError{Repository: repo, Path: rel, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Repository: repo, Path: rel, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, &FetchError{Repository: repo, Path: rel, Status: resp.StatusCode, Err: ErrNotFound}
	default:
		resp.Body.Close()
		return nil, &FetchError{Repository: repo, Path: rel, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

// sidecar reads a checksum file. A missing sidecar yields "".
func (c *Client) sidecar(ctx context.Context, repo, rel string) (string, error) {
	body, err := c.get(ctx, repo, rel)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 1024))
	if err != nil {
		return "", &FetchError{Repository: repo, Path: rel, Err: err}
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), nil
}

// Metadata reads maven-metadata.xml for groupId:artifactId from the first
// repository that serves it. Metadata is mutable, so it bypasses the cache.
func (c *Client) Metadata(ctx context.Context, groupID, artifactID string) (*metadataXML, error) {
	rel := artifactDir(groupID, artifactID) + "/maven-metadata.xml"
	body, err := c.open(ctx, rel)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return parseMetadata(buf.Bytes())
}

// verifyingReader hashes the stream and turns EOF into a ChecksumError on
// mismatch, so the atomic cache write is abandoned.
type verifyingReader struct {
	rc       io.ReadCloser
	h        hash.Hash
	expected string
	path     string
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		if actual := hex.EncodeToString(v.h.Sum(nil)); actual != v.expected {
			return n, &ChecksumError{Path: v.path, Expected: v.expected, Actual: actual}
		}
	}
	return n, err
}

func (v *verifyingReader) Close() error { return v.rc.Close() }
