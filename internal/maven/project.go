package maven

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"

	"schemagen/internal/types"
)

const maxParentDepth = 32

// Dependency is a <dependency> entry after inheritance and interpolation.
type Dependency struct {
	GroupID    string
	ArtifactID string
	Version    string
	Type       string
	Classifier string
	Scope      string
	Optional   bool
	Exclusions []Exclusion
}

func (d Dependency) Key() string { return d.GroupID + ":" + d.ArtifactID }

type Exclusion struct {
	GroupID    string
	ArtifactID string
}

func (e Exclusion) matches(groupID, artifactID string) bool {
	return (e.GroupID == "*" || e.GroupID == groupID) && (e.ArtifactID == "*" || e.ArtifactID == artifactID)
}

// Project is an effective POM.
type Project struct {
	Coordinate   types.Coordinate
	Packaging    string
	Properties   map[string]string
	Managed      map[string]Dependency
	Dependencies []Dependency
}

// model is a POM merged with its parents but not yet interpolated, so that
// inherited expressions see the child's project.* values.
type model struct {
	coord        types.Coordinate
	packaging    string
	parent       *types.Coordinate
	properties   map[string]string
	managed      []dependencyXML
	dependencies []dependencyXML
}

func (d *Downloader) loadModel(ctx context.Context, c types.Coordinate, depth int) (*model, error) {
	if depth > maxParentDepth {
		return nil, fmt.Errorf("pom %s: parent chain deeper than %d", c, maxParentDepth)
	}
	if m, ok := d.models.Get(c); ok {
		return m, nil
	}

	raw, err := d.readPOM(ctx, c)
	if err != nil {
		return nil, err
	}
	p, err := parsePOM(raw)
	if err != nil {
		return nil, fmt.Errorf("pom %s: %w", c, err)
	}

	m := &model{
		coord:      c,
		packaging:  strings.TrimSpace(p.Packaging),
		properties: map[string]string{},
	}
	if p.Parent != nil {
		pc := types.Coordinate{
			GroupID:    strings.TrimSpace(p.Parent.GroupID),
			ArtifactID: strings.TrimSpace(p.Parent.ArtifactID),
			Version:    strings.TrimSpace(p.Parent.Version),
		}
		if err := pc.Validate(); err != nil {
			return nil, fmt.Errorf("pom %s: invalid parent: %w", c, err)
		}
		parent, err := d.loadModel(ctx, pc, depth+1)
		if err != nil {
			return nil, fmt.Errorf("pom %s: parent: %w", c, err)
		}
		m.parent = &pc
		maps.Copy(m.properties, parent.properties)
		m.managed = append(m.managed, parent.managed...)
		m.dependencies = append(m.dependencies, parent.dependencies...)
	}
	for _, prop := range p.Properties.Entries {
		m.properties[prop.Name] = prop.Value
	}
	// Child entries come after inherited ones; mergeDeps keeps the last.
	m.managed = mergeDeps(m.managed, p.DependencyManagement.Dependencies)
	m.dependencies = mergeDeps(m.dependencies, p.Dependencies)

	d.models.Add(c, m)
	return m, nil
}

func mergeDeps(inherited, own []dependencyXML) []dependencyXML {
	out := make([]dependencyXML, 0, len(inherited)+len(own))
	index := map[string]int{}
	for _, list := range [][]dependencyXML{inherited, own} {
		for _, dep := range list {
			key := strings.TrimSpace(dep.GroupID) + ":" + strings.TrimSpace(dep.ArtifactID) + ":" + strings.TrimSpace(dep.Type) + ":" + strings.TrimSpace(dep.Classifier)
			if i, ok := index[key]; ok {
				out[i] = dep
				continue
			}
			index[key] = len(out)
			out = append(out, dep)
		}
	}
	return out
}

// Project returns the effective POM of c, with BOM imports applied.
func (d *Downloader) Project(ctx context.Context, c types.Coordinate) (*Project, error) {
	return d.project(ctx, c, 0)
}

func (d *Downloader) project(ctx context.Context, c types.Coordinate, depth int) (*Project, error) {
	if depth > maxParentDepth {
		return nil, fmt.Errorf("pom %s: bom imports nested deeper than %d", c, maxParentDepth)
	}
	m, err := d.loadModel(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	props := m.interpolationProps()

	proj := &Project{
		Coordinate: m.coord,
		Packaging:  m.packaging,
		Properties: props,
		Managed:    map[string]Dependency{},
	}
	if proj.Packaging == "" {
		proj.Packaging = "jar"
	}

	var imports []Dependency
	for _, raw := range m.managed {
		dep := toDependency(raw, props)
		if dep.Scope == "import" && dep.Type == "pom" {
			imports = append(imports, dep)
			continue
		}
		proj.Managed[dep.Key()] = dep
	}
	for _, imp := range imports {
		bc := types.Coordinate{GroupID: imp.GroupID, ArtifactID: imp.ArtifactID, Version: imp.Version}
		if err := bc.Validate(); err != nil || unresolved(bc.Version) {
			return nil, fmt.Errorf("pom %s: cannot import bom %s", c, bc)
		}
		bom, err := d.project(ctx, bc, depth+1)
		if err != nil {
			return nil, fmt.Errorf("pom %s: import bom: %w", c, err)
		}
		for key, dep := range bom.Managed {
			if _, ok := proj.Managed[key]; !ok {
				proj.Managed[key] = dep
			}
		}
	}
	for _, raw := range m.dependencies {
		proj.Dependencies = append(proj.Dependencies, toDependency(raw, props))
	}
	return proj, nil
}

func (m *model) interpolationProps() map[string]string {
	props := maps.Clone(m.properties)
	set := func(k, v string) {
		props["project."+k] = v
		props["pom."+k] = v
	}
	set("groupId", m.coord.GroupID)
	set("artifactId", m.coord.ArtifactID)
	set("version", m.coord.Version)
	set("packaging", firstNonEmpty(m.packaging, "jar"))
	if m.parent != nil {
		for _, prefix := range []string{"project.parent.", "parent.", "pom.parent."} {
			props[prefix+"groupId"] = m.parent.GroupID
			props[prefix+"artifactId"] = m.parent.ArtifactID
			props[prefix+"version"] = m.parent.Version
		}
	}
	if _, ok := props["java.version"]; !ok {
		props["java.version"] = "17"
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			props["env."+k] = v
		}
	}
	return props
}

func toDependency(raw dependencyXML, props map[string]string) Dependency {
	get := func(s string) string { return strings.TrimSpace(interpolate(strings.TrimSpace(s), props)) }
	dep := Dependency{
		GroupID:    get(raw.GroupID),
		ArtifactID: get(raw.ArtifactID),
		Version:    get(raw.Version),
		Type:       firstNonEmpty(get(raw.Type), "jar"),
		Classifier: get(raw.Classifier),
		Scope:      get(raw.Scope),
		Optional:   strings.EqualFold(get(raw.Optional), "true"),
	}
	for _, ex := range raw.Exclusions {
		dep.Exclusions = append(dep.Exclusions, Exclusion{GroupID: get(ex.GroupID), ArtifactID: get(ex.ArtifactID)})
	}
	return dep
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
