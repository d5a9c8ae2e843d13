package install

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const filePerm os.FileMode = 0o644

// pendingFile is content written to a temporary file beside its destination
// and not yet renamed into place.
type pendingFile struct {
	tmp  string
	dest string
	sum  string
	size int64
}

// prepareFile streams r into a temporary file in path's directory. When
// wantHash is non-empty the written bytes must hash to it.
func prepareFile(path string, r io.Reader, wantHash string) (*pendingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 -- repository directories are shared
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".localpublish-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	p := &pendingFile{tmp: tmp.Name(), dest: path}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Chmod(filePerm)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		p.discard()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	p.sum = hex.EncodeToString(h.Sum(nil))
	p.size = size
	if wantHash != "" && p.sum != wantHash {
		p.discard()
		return nil, fmt.Errorf("content of %s changed while installing: sha256 %s, expected %s", path, p.sum, wantHash)
	}
	return p, nil
}

func (p *pendingFile) commit() error {
	if err := os.Rename(p.tmp, p.dest); err != nil {
		return fmt.Errorf("move into place %s: %w", p.dest, err)
	}
	return nil
}

func (p *pendingFile) discard() {
	_ = os.Remove(p.tmp)
}

// batch collects pending files so that either all of them are moved into
// place or none is.
type batch struct {
	baseDir string
	files   []*pendingFile
}

func (b *batch) add(p *pendingFile) { b.files = append(b.files, p) }

// abort removes every temporary file and any directory left empty below
// baseDir by the preparation.
func (b *batch) abort() {
	for _, p := range b.files {
		p.discard()
	}
	for _, p := range b.files {
		pruneEmptyDirs(filepath.Dir(p.dest), b.baseDir)
	}
	b.files = nil
}

// commit renames every file into place in order. A rename failure stops the
// batch; files renamed before it stay installed.
func (b *batch) commit() error {
	for i, p := range b.files {
		if err := p.commit(); err != nil {
			rest := &batch{baseDir: b.baseDir, files: b.files[i:]}
			rest.abort()
			return err
		}
	}
	b.files = nil
	return nil
}

func pruneEmptyDirs(dir, baseDir string) {
	for dir != baseDir && isWithin(baseDir, dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// errOutsideRepository is returned for destinations that resolve outside
// the repository root.
var errOutsideRepository = errors.New("destination is outside the repository")

// isWithin reports whether path is baseDir itself or lies below it.
func isWithin(baseDir, path string) bool {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// resolveDestination joins a layout-relative path onto baseDir and refuses
// results that are not strictly below baseDir.
func resolveDestination(baseDir, layoutPath string) (string, error) {
	dest := filepath.Join(baseDir, filepath.FromSlash(layoutPath))
	if dest == filepath.Clean(baseDir) || !isWithin(baseDir, dest) {
		return "", fmt.Errorf("%s: %w", layoutPath, errOutsideRepository)
	}
	return dest, nil
}
