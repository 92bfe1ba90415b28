package maven

import (
	"strings"

	"schemagen/internal/types"
)

// Artifact is one file of a coordinate in a Maven2 repository layout.
type Artifact struct {
	types.Coordinate
	Classifier string
	Extension  string
}

// Path returns the slash-separated repository path of the artifact.
func (a Artifact) Path() string {
	name := a.ArtifactID + "-" + a.Version
	if a.Classifier != "" {
		name += "-" + a.Classifier
	}
	ext := a.Extension
	if ext == "" {
		ext = "jar"
	}
	return versionDir(a.Coordinate) + "/" + name + "." + ext
}

func pomArtifact(c types.Coordinate) Artifact {
	return Artifact{Coordinate: c, Extension: "pom"}
}

func versionDir(c types.Coordinate) string {
	return artifactDir(c.GroupID, c.ArtifactID) + "/" + c.Version
}

func artifactDir(groupID, artifactID string) string {
	return strings.ReplaceAll(groupID, ".", "/") + "/" + artifactID
}

// extensionFor maps a dependency type onto the file it contributes to the
// classpath. Only types packaged as a class archive qualify; ok is false for
// pom, war, zip and any other type, whose dependencies are still followed.
func extensionFor(depType, classifier string) (ext, cls string, ok bool) {
	switch strings.TrimSpace(depType) {
	case "", "jar", "bundle", "ejb", "maven-plugin", "ejb-client", "java-source", "javadoc":
		return "jar", classifier, true
	case "test-jar":
		if classifier == "" {
			classifier = "tests"
		}
		return "jar", classifier, true
	default:
		return "", "", false
	}
}
