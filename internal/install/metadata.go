package install

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"time"
)

// lastUpdatedFormat is yyyyMMddHHmmss.
const lastUpdatedFormat = "20060102150405"

// Metadata is the per-module metadata file maintained next to installed versions.
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning lists the installed versions of a module.
type Versioning struct {
	Latest      string   `xml:"latest,omitempty"`
	Release     string   `xml:"release,omitempty"`
	Versions    []string `xml:"versions>version"`
	LastUpdated string   `xml:"lastUpdated,omitempty"`
}

// readMetadata loads path, returning an empty document when it doesn't exist.
func readMetadata(path string) (*Metadata, error) {
	// #nosec G304 -- path is derived from the repository layout
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Metadata{}, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return &m, nil
}

// addVersion records version as installed at now. A document describing a
// different module is replaced.
func (m *Metadata) addVersion(groupID, artifactID, version string, now time.Time) {
	if m.GroupID != groupID || m.ArtifactID != artifactID {
		m.Versioning = Versioning{}
	}
	m.GroupID = groupID
	m.ArtifactID = artifactID

	seen := make(map[string]bool, len(m.Versioning.Versions)+1)
	versions := make([]string, 0, len(m.Versioning.Versions)+1)
	for _, v := range append(m.Versioning.Versions, version) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		versions = append(versions, v)
	}
	sort.Strings(versions)

	m.Versioning.Versions = versions
	m.Versioning.Latest = version
	m.Versioning.Release = version
	m.Versioning.LastUpdated = now.UTC().Format(lastUpdatedFormat)
}

func (m *Metadata) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
