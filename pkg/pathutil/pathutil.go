// Package pathutil validates user-supplied file paths before the engine
// reads or writes them.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateConfigPath checks a configuration file path. Config files must
// be YAML and must not contain traversal components.
func ValidateConfigPath(path string) (string, error) {
	absPath, err := safeAbs(path)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	return absPath, nil
}

// ValidateOutputPath checks a report output path. The parent directory
// must already exist; reports never create directory trees implicitly.
func ValidateOutputPath(path string) (string, error) {
	absPath, err := safeAbs(path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(absPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("parent directory does not exist: %s", dir)
	}

	return absPath, nil
}

// ValidateInputPath checks a batch input file path and requires the file
// to exist.
func ValidateInputPath(path string) (string, error) {
	absPath, err := safeAbs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("input path is a directory: %s", absPath)
	}

	return absPath, nil
}

func safeAbs(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains directory traversal pattern: %s", path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	return absPath, nil
}
