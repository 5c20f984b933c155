// Package fileutil provides filename and file-handling helpers shared by the
// import pipeline.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var invalidNameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SplitNameExt extracts the base filename and extension from a URL or local
// path. Query parameters are stripped and the extension is returned lowercase
// without the leading dot.
func SplitNameExt(urlOrPath string) (string, string) {
	if urlOrPath == "" {
		return "", ""
	}
	name := urlOrPath
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base, strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SafeName replaces characters that are invalid in file or folder names with
// underscores and trims surrounding whitespace.
func SafeName(name string) string {
	return strings.TrimSpace(invalidNameChars.ReplaceAllString(name, "_"))
}

var captionTitler = cases.Title(language.English)

// CaptionFromFilename derives a display caption from a media filename when the
// remote source supplies none: separators become spaces and words are
// title-cased.
func CaptionFromFilename(filename string) string {
	base, _ := SplitNameExt(filename)
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return ""
	}
	return captionTitler.String(base)
}

// AtomicWrite writes data to path via a temp file in the same directory and a
// rename, so readers never observe a partial file.
func AtomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".framefeed-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
