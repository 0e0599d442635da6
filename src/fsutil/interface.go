package fsutil

// FileStore provides an interface for file system operations
type FileStore interface {
	// ReadFile reads a file and returns its contents
	ReadFile(path string) ([]byte, error)

	// IsDir reports whether path is a directory
	IsDir(path string) (bool, error)

	// ListFiles returns the regular files directly under dir whose extension
	// is one of exts, sorted by name
	ListFiles(dir string, exts ...string) ([]string, error)
}
