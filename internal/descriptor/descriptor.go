// Package descriptor reads module coordinates from a package descriptor (POM).
package descriptor

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// DefaultPackaging is used when the descriptor declares none.
const DefaultPackaging = "jar"

// Coordinates identify a module.
type Coordinates struct {
	GroupID    string
	ArtifactID string
	Version    string
}

// String renders groupId:artifactId:version.
func (c Coordinates) String() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// Descriptor is the parsed subset of a package descriptor needed to install it.
type Descriptor struct {
	Path        string
	Coordinates Coordinates
	Packaging   string
}

type parentXML struct {
	GroupID string `xml:"groupId"`
	Version string `xml:"version"`
}

type projectXML struct {
	XMLName    xml.Name   `xml:"project"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Version    string     `xml:"version"`
	Packaging  string     `xml:"packaging"`
	Parent     *parentXML `xml:"parent"`
}

// Load reads and parses the descriptor at path.
func Load(path string) (*Descriptor, error) {
	f, err := os.Open(path) // #nosec G304 -- descriptor path is caller supplied
	if err != nil {
		return nil, fmt.Errorf("open descriptor: %w", err)
	}
	defer func() { _ = f.Close() }()

	var p projectXML
	if err := xml.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}

	d := &Descriptor{
		Path: path,
		Coordinates: Coordinates{
			GroupID:    strings.TrimSpace(p.GroupID),
			ArtifactID: strings.TrimSpace(p.ArtifactID),
			Version:    strings.TrimSpace(p.Version),
		},
		Packaging: strings.TrimSpace(p.Packaging),
	}
	if p.Parent != nil {
		if d.Coordinates.GroupID == "" {
			d.Coordinates.GroupID = strings.TrimSpace(p.Parent.GroupID)
		}
		if d.Coordinates.Version == "" {
			d.Coordinates.Version = strings.TrimSpace(p.Parent.Version)
		}
	}
	if d.Packaging == "" {
		d.Packaging = DefaultPackaging
	}

	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", path, err)
	}
	return d, nil
}

func (d *Descriptor) validate() error {
	var missing []string
	if d.Coordinates.GroupID == "" {
		missing = append(missing, "groupId")
	}
	if d.Coordinates.ArtifactID == "" {
		missing = append(missing, "artifactId")
	}
	if d.Coordinates.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	for _, f := range []struct{ name, value string }{
		{"groupId", d.Coordinates.GroupID},
		{"artifactId", d.Coordinates.ArtifactID},
		{"version", d.Coordinates.Version},
	} {
		if !isSegment(f.value) {
			return fmt.Errorf("%s %q is not a valid path segment", f.name, f.value)
		}
	}
	return nil
}

// isSegment reports whether v can be used as a single repository path
// component.
func isSegment(v string) bool {
	return v != "." && v != ".." && !strings.ContainsAny(v, `/\`)
}

// MainExtension is the file extension of the primary artifact for the
// descriptor's packaging. Packagings that produce no archive map to "".
func (d *Descriptor) MainExtension() string {
	switch d.Packaging {
	case "pom":
		return ""
	case "maven-plugin", "bundle", "ejb":
		return "jar"
	default:
		return d.Packaging
	}
}
