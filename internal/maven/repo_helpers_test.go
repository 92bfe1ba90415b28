package maven

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"schemagen/internal/cache/localrepo"
)

// fakeRepo serves a Maven2 layout from memory.
type fakeRepo struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	srv   *httptest.Server
}

func newFakeRepo(t *testing.T) *fakeRepo {
	t.Helper()
	r := &fakeRepo{files: map[string][]byte{}, hits: map[string]int{}}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		p := strings.TrimPrefix(req.URL.Path, "/")
		r.mu.Lock()
		r.hits[p]++
		raw, ok := r.files[p]
		r.mu.Unlock()
		if !ok {
			http.NotFound(w, req)
			return
		}
		_, _ = w.Write(raw)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *fakeRepo) put(path string, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = []byte(content)
}

func (r *fakeRepo) hitCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

// publish stores a POM and, unless packaging is pom, a placeholder jar.
func (r *fakeRepo) publish(g, a, v, body string) {
	base := strings.ReplaceAll(g, ".", "/") + "/" + a + "/" + v + "/" + a + "-" + v
	r.put(base+".pom", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
%s
</project>`, g, a, v, body))
	if !strings.Contains(body, "<packaging>pom</packaging>") {
		r.put(base+".jar", "jar:"+g+":"+a+":"+v)
	}
}

func deps(entries ...string) string {
	return "<dependencies>" + strings.Join(entries, "") + "</dependencies>"
}

func dep(g, a, v string, extra ...string) string {
	out := "<dependency><groupId>" + g + "</groupId><artifactId>" + a + "</artifactId>"
	if v != "" {
		out += "<version>" + v + "</version>"
	}
	return out + strings.Join(extra, "") + "</dependency>"
}

func newTestDownloader(t *testing.T, repos ...string) *Downloader {
	t.Helper()
	cache, err := localrepo.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	client, err := NewClient(cache, ClientConfig{Repositories: repos})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	d, err := NewDownloader(client, DownloaderConfig{})
	if err != nil {
		t.Fatalf("downloader: %v", err)
	}
	return d
}

func closureCoords(arts []Artifact) []string {
	out := make([]string, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.Coordinate.String())
	}
	return out
}
