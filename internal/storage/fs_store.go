package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FSStore is a filesystem-based implementation of ObjectStore.
// Objects live under the staging directory in a fan-out layout:
//
//	objects/
//	  ab/
//	    cd1234...           (first 2 chars = subdir, rest = filename)
//	    cd1234....meta.json
//	tmp/                    (in-flight writes)
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	for _, dir := range []string{
		filepath.Join(basePath, "objects"),
		filepath.Join(basePath, "tmp"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &FSStore{basePath: basePath}, nil
}

// Put streams r into a temporary file while hashing it, then moves the file
// to its content address.
func (fs *FSStore) Put(ctx context.Context, r io.Reader, objectType ObjectType) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Join(fs.basePath, "tmp"), "put-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	fs.mu.Lock()
	defer fs.mu.Unlock()

	objectPath := fs.objectPath(hash)
	if _, err := os.Stat(objectPath); err == nil {
		metadata, err := fs.readMetadata(hash)
		if err != nil {
			metadata = Metadata{CreatedAt: time.Now()}
		}
		metadata.RefCount++
		if err := fs.writeMetadata(hash, objectType, metadata); err != nil {
			return nil, fmt.Errorf("update metadata: %w", err)
		}
		return &Object{Hash: hash, Type: objectType, Size: size, Metadata: metadata}, nil
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o750); err != nil {
		return nil, fmt.Errorf("create object directory: %w", err)
	}
	if err := os.Rename(tmpName, objectPath); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	metadata := Metadata{CreatedAt: time.Now(), RefCount: 1}
	if err := fs.writeMetadata(hash, objectType, metadata); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &Object{Hash: hash, Type: objectType, Size: size, Metadata: metadata}, nil
}

// Open returns a reader over the object content.
func (fs *FSStore) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - objectPath is internal, constructed from the hash
	f, err := os.Open(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Hash: hash}
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Stat returns the object's descriptor.
func (fs *FSStore) Stat(ctx context.Context, hash string) (*Object, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Hash: hash}
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	obj := &Object{Hash: hash, Size: info.Size()}
	if meta, err := fs.readMetadataFile(hash); err == nil {
		obj.Type = meta.Type
		obj.Metadata = meta.Metadata
	}
	return obj, nil
}

// Exists checks if an object with the given hash exists.
func (fs *FSStore) Exists(ctx context.Context, hash string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Delete removes an object by its content hash.
func (fs *FSStore) Delete(ctx context.Context, hash string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	objectPath := fs.objectPath(hash)
	if err := os.Remove(objectPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Hash: hash}
		}
		return fmt.Errorf("delete object: %w", err)
	}

	_ = os.Remove(fs.metadataPath(hash))
	// only succeeds once the fan-out directory is empty
	_ = os.Remove(filepath.Dir(objectPath))
	return nil
}

// List returns all object hashes matching the given type filter.
func (fs *FSStore) List(ctx context.Context, objectType ObjectType) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var hashes []string
	objectsDir := filepath.Join(fs.basePath, "objects")
	err := filepath.WalkDir(objectsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta.json") {
			return nil
		}

		relPath, err := filepath.Rel(objectsDir, path)
		if err != nil {
			return nil
		}
		hash := strings.ReplaceAll(relPath, string(filepath.Separator), "")

		if objectType != "" {
			meta, err := fs.readMetadataFile(hash)
			if err != nil || meta.Type != objectType {
				return nil
			}
		}
		hashes = append(hashes, hash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk objects: %w", err)
	}
	return hashes, nil
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

func (fs *FSStore) objectPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(fs.basePath, "objects", hash)
	}
	return filepath.Join(fs.basePath, "objects", hash[:2], hash[2:])
}

func (fs *FSStore) metadataPath(hash string) string {
	return fs.objectPath(hash) + ".meta.json"
}

type metadataFile struct {
	Type     ObjectType `json:"type"`
	Metadata Metadata   `json:"metadata"`
}

func (fs *FSStore) readMetadataFile(hash string) (metadataFile, error) {
	// #nosec G304 - metadataPath is internal, constructed from the hash
	data, err := os.ReadFile(fs.metadataPath(hash))
	if err != nil {
		return metadataFile{}, fmt.Errorf("read metadata: %w", err)
	}
	var m metadataFile
	if err := json.Unmarshal(data, &m); err != nil {
		return metadataFile{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

func (fs *FSStore) readMetadata(hash string) (Metadata, error) {
	m, err := fs.readMetadataFile(hash)
	return m.Metadata, err
}

func (fs *FSStore) writeMetadata(hash string, objectType ObjectType, metadata Metadata) error {
	data, err := json.Marshal(metadataFile{Type: objectType, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(fs.metadataPath(hash), data, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
