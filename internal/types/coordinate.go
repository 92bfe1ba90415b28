package types

import (
	"fmt"
	"strings"
)

// Coordinate identifies one fetchable Maven artifact.
type Coordinate struct {
	GroupID    string `json:"groupId" yaml:"groupId"`
	ArtifactID string `json:"artifactId" yaml:"artifactId"`
	Version    string `json:"version" yaml:"version"`
}

func (c Coordinate) String() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// Key identifies the artifact regardless of version. Dependency mediation is keyed on it.
func (c Coordinate) Key() string {
	return c.GroupID + ":" + c.ArtifactID
}

// Validate rejects coordinates that cannot be mapped onto a repository layout.
func (c Coordinate) Validate() error {
	parts := []struct {
		name  string
		value string
	}{
		{"groupId", c.GroupID},
		{"artifactId", c.ArtifactID},
		{"version", c.Version},
	}
	for _, p := range parts {
		v := strings.TrimSpace(p.value)
		if v == "" {
			return fmt.Errorf("%s is required", p.name)
		}
		if v != p.value {
			return fmt.Errorf("%s has surrounding whitespace: %q", p.name, p.value)
		}
		if strings.ContainsAny(v, `/\`) || strings.Contains(v, "..") {
			return fmt.Errorf("invalid %s: %q", p.name, v)
		}
	}
	return nil
}

// ParseCoordinate accepts "group:artifact:version".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("coordinate %q: want groupId:artifactId:version", s)
	}
	c := Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return c, nil
}
