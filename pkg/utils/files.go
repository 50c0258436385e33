package utils

import (
	"path/filepath"
	"strings"
)

// GetPathInfo resolves relPath to an absolute path and its directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// ReplaceExt swaps the extension of path for ext, or appends ext when path
// has none.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
