package deploy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Artifact is a binary output installed alongside the descriptor.
// The main artifact has an empty Classifier.
type Artifact struct {
	Path       string
	Classifier string
	Extension  string
}

// ParseArtifact parses "path" or "classifier=path". The text before "=" is
// only a classifier when it holds no path separator, so "build/a=b.jar" is a
// path. The extension is taken from the file name; a multi-part suffix such
// as .tar.gz is kept whole. A main artifact without an extension is left for
// the descriptor's packaging to decide.
func ParseArtifact(raw string) (Artifact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Artifact{}, fmt.Errorf("empty artifact")
	}

	a := Artifact{Path: raw}
	if classifier, path, ok := strings.Cut(raw, "="); ok && !strings.ContainsAny(classifier, `/\`) {
		a.Classifier = strings.TrimSpace(classifier)
		a.Path = strings.TrimSpace(path)
		if a.Classifier == "" {
			return Artifact{}, fmt.Errorf("artifact %q: empty classifier", raw)
		}
	}
	if a.Path == "" {
		return Artifact{}, fmt.Errorf("artifact %q: empty path", raw)
	}

	a.Extension = extensionOf(a.Path)
	if a.Extension == "" && a.Classifier != "" {
		return Artifact{}, fmt.Errorf("artifact %q: file has no extension", raw)
	}
	return a, nil
}

// String renders the artifact back into its parseable form.
func (a Artifact) String() string {
	if a.Classifier == "" {
		return a.Path
	}
	return a.Classifier + "=" + a.Path
}

var compoundExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz"}

func extensionOf(path string) string {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range compoundExtensions {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			return ext[1:]
		}
	}
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
