package maven

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type pomXML struct {
	XMLName    xml.Name      `xml:"project"`
	GroupID    string        `xml:"groupId"`
	ArtifactID string        `xml:"artifactId"`
	Version    string        `xml:"version"`
	Packaging  string        `xml:"packaging"`
	Parent     *parentXML    `xml:"parent"`
	Properties propertiesXML `xml:"properties"`

	DependencyManagement struct {
		Dependencies []dependencyXML `xml:"dependencies>dependency"`
	} `xml:"dependencyManagement"`
	Dependencies []dependencyXML `xml:"dependencies>dependency"`
}

type parentXML struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type dependencyXML struct {
	GroupID    string         `xml:"groupId"`
	ArtifactID string         `xml:"artifactId"`
	Version    string         `xml:"version"`
	Type       string         `xml:"type"`
	Classifier string         `xml:"classifier"`
	Scope      string         `xml:"scope"`
	Optional   string         `xml:"optional"`
	Exclusions []exclusionXML `xml:"exclusions>exclusion"`
}

type exclusionXML struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

// propertiesXML collects <properties> children in document order.
type propertiesXML struct {
	Entries []property
}

type property struct {
	Name  string
	Value string
}

func (p *propertiesXML) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			p.Entries = append(p.Entries, property{Name: t.Name.Local, Value: strings.TrimSpace(v)})
		case xml.EndElement:
			return nil
		}
	}
}

func parsePOM(raw []byte) (*pomXML, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	var p pomXML
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse pom: %w", err)
	}
	if strings.TrimSpace(p.ArtifactID) == "" {
		return nil, fmt.Errorf("parse pom: missing artifactId")
	}
	return &p, nil
}

type metadataXML struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func parseMetadata(raw []byte) (*metadataXML, error) {
	var m metadataXML
	if err := xml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse maven-metadata.xml: %w", err)
	}
	return &m, nil
}
