// Package layout maps artifact coordinates to relative paths inside a repository.
//
// A Strategy is read-only and may be shared between concurrent publishes.
// Strategies are looked up by name through a Resolver; the built-in names
// follow the conventional repository layouts:
//
//	default  g/r/o/u/p/artifact/1.0/artifact-1.0[-classifier].ext
//	legacy   group/exts/artifact-1.0[-classifier].ext
//	flat     artifact-1.0[-classifier].ext
package layout

import (
	"path"
	"strings"
)

// Coordinates identify one file of a published module.
type Coordinates struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Extension  string
}

// FileName returns artifactId-version[-classifier].extension.
func (c Coordinates) FileName() string {
	var b strings.Builder
	b.WriteString(c.ArtifactID)
	b.WriteByte('-')
	b.WriteString(c.Version)
	if c.Classifier != "" {
		b.WriteByte('-')
		b.WriteString(c.Classifier)
	}
	if c.Extension != "" {
		b.WriteByte('.')
		b.WriteString(c.Extension)
	}
	return b.String()
}

// Strategy describes how coordinates map to slash-separated relative paths.
type Strategy interface {
	// ID is the name the strategy is registered under.
	ID() string
	// PathOf returns the relative path of the artifact file.
	PathOf(c Coordinates) string
	// MetadataPathOf returns the relative path of the module metadata file
	// maintained for repositoryID (e.g., "local" -> maven-metadata-local.xml).
	MetadataPathOf(c Coordinates, repositoryID string) string
}

func metadataFileName(repositoryID string) string {
	return "maven-metadata-" + repositoryID + ".xml"
}

type defaultLayout struct{}

func (defaultLayout) ID() string { return "default" }

func (defaultLayout) PathOf(c Coordinates) string {
	return path.Join(groupPath(c.GroupID), c.ArtifactID, c.Version, c.FileName())
}

func (defaultLayout) MetadataPathOf(c Coordinates, repositoryID string) string {
	return path.Join(groupPath(c.GroupID), c.ArtifactID, metadataFileName(repositoryID))
}

type legacyLayout struct{}

func (legacyLayout) ID() string { return "legacy" }

func (legacyLayout) PathOf(c Coordinates) string {
	return path.Join(c.GroupID, c.Extension+"s", c.FileName())
}

func (legacyLayout) MetadataPathOf(_ Coordinates, repositoryID string) string {
	return metadataFileName(repositoryID)
}

type flatLayout struct{}

func (flatLayout) ID() string { return "flat" }

func (flatLayout) PathOf(c Coordinates) string {
	return c.FileName()
}

func (flatLayout) MetadataPathOf(_ Coordinates, repositoryID string) string {
	return metadataFileName(repositoryID)
}

// groupPath turns org.example.tools into org/example/tools.
func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

// Default returns the standard hierarchical layout.
func Default() Strategy { return defaultLayout{} }

// Legacy returns the pre-2.0 layout grouping files by extension.
func Legacy() Strategy { return legacyLayout{} }

// Flat returns a layout that places every file at the repository root.
func Flat() Strategy { return flatLayout{} }
