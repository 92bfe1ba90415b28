package maven

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"schemagen/internal/types"
)

type DownloaderConfig struct {
	// ModelCacheSize bounds the in-process cache of parsed POMs.
	ModelCacheSize int
	// Parallel bounds concurrent file downloads for one resolution.
	Parallel int
}

// Downloader resolves a coordinate's transitive runtime closure and
// downloads every file of it into the local cache.
type Downloader struct {
	client   *Client
	models   *lru.Cache[types.Coordinate, *model]
	parallel int
}

func NewDownloader(client *Client, cfg DownloaderConfig) (*Downloader, error) {
	if client == nil {
		return nil, fmt.Errorf("maven client is required")
	}
	if cfg.ModelCacheSize <= 0 {
		cfg.ModelCacheSize = 2048
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	models, err := lru.New[types.Coordinate, *model](cfg.ModelCacheSize)
	if err != nil {
		return nil, err
	}
	return &Downloader{client: client, models: models, parallel: cfg.Parallel}, nil
}

func (d *Downloader) readPOM(ctx context.Context, c types.Coordinate) ([]byte, error) {
	p, err := d.client.Fetch(ctx, pomArtifact(c).Path())
	if err != nil {
		return nil, fmt.Errorf("pom %s: %w", c, err)
	}
	return os.ReadFile(p)
}

type node struct {
	coord      types.Coordinate
	exclusions []Exclusion
	trail      string
}

func (n node) excludes(groupID, artifactID string) bool {
	for _, ex := range n.exclusions {
		if ex.matches(groupID, artifactID) {
			return true
		}
	}
	return false
}

// Closure walks the dependency graph breadth-first with nearest-wins
// mediation and returns the artifacts contributing classes, root first.
func (d *Downloader) Closure(ctx context.Context, root types.Coordinate) ([]Artifact, error) {
	rootProj, err := d.Project(ctx, root)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	if ext, cls, ok := extensionFor(packagingType(rootProj.Packaging), ""); ok {
		out = append(out, Artifact{Coordinate: root, Extension: ext, Classifier: cls})
	}

	seen := map[string]bool{root.Key(): true}
	queue := []node{{coord: root, trail: root.String()}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		proj := rootProj
		if cur.coord != root {
			if proj, err = d.Project(ctx, cur.coord); err != nil {
				return nil, fmt.Errorf("%s: %w", cur.trail, err)
			}
		}
		isRoot := cur.coord == root

		for _, dep := range proj.Dependencies {
			if !followScope(dep.Scope) || (dep.Optional && !isRoot) {
				continue
			}
			if cur.excludes(dep.GroupID, dep.ArtifactID) {
				continue
			}
			key := dep.Key()
			if seen[key] {
				continue
			}
			version, err := d.selectVersion(ctx, dep, rootProj, proj, isRoot)
			if err != nil {
				return nil, fmt.Errorf("%s -> %s: %w", cur.trail, key, err)
			}
			coord := types.Coordinate{GroupID: dep.GroupID, ArtifactID: dep.ArtifactID, Version: version}
			if err := coord.Validate(); err != nil {
				return nil, fmt.Errorf("%s -> %s: %w", cur.trail, key, err)
			}
			seen[key] = true

			if ext, cls, ok := extensionFor(dep.Type, dep.Classifier); ok {
				out = append(out, Artifact{Coordinate: coord, Extension: ext, Classifier: cls})
			}
			queue = append(queue, node{
				coord:      coord,
				exclusions: append(append([]Exclusion(nil), cur.exclusions...), dep.Exclusions...),
				trail:      cur.trail + " -> " + coord.String(),
			})
		}
	}
	return out, nil
}

// selectVersion applies root dependency management to transitive entries,
// falls back to the declaring POM's management, and expands ranges.
func (d *Downloader) selectVersion(ctx context.Context, dep Dependency, rootProj, owner *Project, isRoot bool) (string, error) {
	version := dep.Version
	if m, ok := rootProj.Managed[dep.Key()]; ok && m.Version != "" && (!isRoot || version == "") {
		version = m.Version
	}
	if version == "" {
		if m, ok := owner.Managed[dep.Key()]; ok {
			version = m.Version
		}
	}
	switch {
	case version == "":
		return "", fmt.Errorf("no version declared or managed")
	case unresolved(version):
		return "", fmt.Errorf("unresolved property in version %q", version)
	case isRangeSpec(version):
		return d.resolveRange(ctx, dep.GroupID, dep.ArtifactID, version)
	case version == "LATEST" || version == "RELEASE":
		meta, err := d.client.Metadata(ctx, dep.GroupID, dep.ArtifactID)
		if err != nil {
			return "", err
		}
		v := meta.Versioning.Release
		if version == "LATEST" && meta.Versioning.Latest != "" {
			v = meta.Versioning.Latest
		}
		if v == "" {
			return "", fmt.Errorf("metadata lists no %s version", strings.ToLower(version))
		}
		return v, nil
	}
	return version, nil
}

func (d *Downloader) resolveRange(ctx context.Context, groupID, artifactID, spec string) (string, error) {
	vr, err := ParseVersionRange(spec)
	if err != nil {
		return "", err
	}
	if v, ok := vr.Pinned(); ok {
		return v, nil
	}
	meta, err := d.client.Metadata(ctx, groupID, artifactID)
	if err != nil {
		return "", fmt.Errorf("version range %s: %w", spec, err)
	}
	v, ok := vr.Highest(meta.Versioning.Versions)
	if !ok {
		return "", fmt.Errorf("no published version satisfies %s", spec)
	}
	return v, nil
}

func followScope(scope string) bool {
	switch strings.TrimSpace(scope) {
	case "", "compile", "runtime":
		return true
	default:
		return false
	}
}

func packagingType(packaging string) string {
	if packaging == "pom" {
		return "pom"
	}
	return "jar"
}

// Fetch resolves the closure of c and downloads every file of it. Any
// missing file fails the whole fetch.
func (d *Downloader) Fetch(ctx context.Context, c types.Coordinate) ([]string, error) {
	artifacts, err := d.Closure(ctx, c)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallel)
	for i, a := range artifacts {
		g.Go(func() error {
			p, err := d.client.Fetch(gctx, a.Path())
			if err != nil {
				return fmt.Errorf("download %s: %w", a.Coordinate, err)
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Printf("maven: resolved %s (%d files)", c, len(paths))
	return paths, nil
}
