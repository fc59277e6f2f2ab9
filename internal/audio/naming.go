package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CanonicalExt is the extension of canonical samples.
const CanonicalExt = ".wav"

// Markers that classify derived files by name.
const (
	ChunkMarker  = "_chunk_"
	BackupMarker = "_original"
	BackupExt    = ".bak"
)

// compressedExts lists container formats that must be transcoded.
var compressedExts = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".opus": {},
	".flac": {},
	".webm": {},
}

// Class describes the role of a file inside a sample directory.
type Class string

const (
	// ClassUnprocessed is a canonical sample that has not been split.
	ClassUnprocessed Class = "unprocessed"
	// ClassChunk is a segment derived from a longer sample.
	ClassChunk Class = "chunk"
	// ClassBackup is an original kept after splitting.
	ClassBackup Class = "backup"
	// ClassOther is anything the pipeline ignores.
	ClassOther Class = "other"
)

// IsCanonical reports whether path has the canonical extension.
func IsCanonical(path string) bool {
	return strings.EqualFold(filepath.Ext(path), CanonicalExt)
}

// IsCompressed reports whether path is in a compressed container format.
func IsCompressed(path string) bool {
	_, ok := compressedExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsSupported reports whether the pipeline accepts path as an upload.
func IsSupported(path string) bool {
	return IsCanonical(path) || IsCompressed(path)
}

// Classify returns the class of a file name.
func Classify(name string) Class {
	base := filepath.Base(name)
	switch {
	case strings.Contains(base, BackupMarker):
		return ClassBackup
	case strings.Contains(base, ChunkMarker):
		return ClassChunk
	case IsCanonical(base):
		return ClassUnprocessed
	default:
		return ClassOther
	}
}

// CanonicalPath returns the sibling of path with the canonical extension.
func CanonicalPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + CanonicalExt
}

// ChunkName returns the name of the index-th (1-based) chunk of name,
// e.g. "voice.wav" -> "voice_chunk_2.wav".
func ChunkName(name string, index int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s%s%d%s", strings.TrimSuffix(name, ext), ChunkMarker, index, ext)
}

// BackupName returns the name an original is renamed to after splitting,
// e.g. "voice.wav" -> "voice_original.wav.bak".
func BackupName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + BackupMarker + ext + BackupExt
}
