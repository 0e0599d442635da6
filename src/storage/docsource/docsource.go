package docsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"govrag/src/core/knowledgebase"
	"govrag/src/fsutil"
	"govrag/src/infrastructure/log"
	"govrag/src/storage/minioctrl"
)

var Extensions = []string{".json", ".yaml", ".yml"}

var ErrNoObjectStore = errors.New("object store not configured")

// ObjectGetter fetches objects from a bucket
type ObjectGetter interface {
	GetObject(ctx context.Context, bucketName, objectName string) ([]byte, error)
}

// Loader reads document sets from local files, local directories or s3:// objects
type Loader struct {
	fs      fsutil.FileStore
	objects ObjectGetter
}

// NewLoader accepts a nil objects getter when only local paths are used
func NewLoader(fs fsutil.FileStore, objects ObjectGetter) *Loader {
	return &Loader{
		fs:      fs,
		objects: objects,
	}
}

// Load returns the documents found at location, in file order
func (l *Loader) Load(ctx context.Context, location string) ([]knowledgebase.Document, error) {
	if bucket, object, ok := minioctrl.ParseObjectURL(location); ok {
		if l.objects == nil {
			return nil, fmt.Errorf("failed to load %s: %w", location, ErrNoObjectStore)
		}
		data, err := l.objects.GetObject(ctx, bucket, object)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", location, err)
		}
		return Parse(object, data)
	}

	isDir, err := l.fs.IsDir(location)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if !isDir {
		return l.loadFile(location)
	}

	files, err := l.fs.ListFiles(location, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", location, err)
	}
	var docs []knowledgebase.Document
	for _, f := range files {
		part, err := l.loadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, part...)
	}
	log.Info("loaded document directory", "path", location, "files", len(files), "documents", len(docs))
	return docs, nil
}

func (l *Loader) loadFile(path string) ([]knowledgebase.Document, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, data)
}

type documentSet struct {
	Documents []knowledgebase.Document `json:"documents" yaml:"documents"`
}

// Parse decodes a document set named name. YAML is chosen by extension,
// anything else is read as JSON. Both a bare list and a {"documents": [...]}
// wrapper are accepted.
func Parse(name string, data []byte) ([]knowledgebase.Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return parseYAML(name, data)
	default:
		return parseJSON(name, data)
	}
}

func parseJSON(name string, data []byte) ([]knowledgebase.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []knowledgebase.Document{}, nil
	}
	if trimmed[0] == '[' {
		var docs []knowledgebase.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return docs, nil
	}
	var set documentSet
	if err := json.Unmarshal(trimmed, &set); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return set.Documents, nil
}

func parseYAML(name string, data []byte) ([]knowledgebase.Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if len(node.Content) == 0 {
		return []knowledgebase.Document{}, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var docs []knowledgebase.Document
		if err := root.Decode(&docs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return docs, nil
	}
	var set documentSet
	if err := root.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return set.Documents, nil
}
