package constants

import "strings"

// FormatPDF is the only document format the pipeline accepts.
const FormatPDF = "PDF"

// MaxUploadBytes is the default upload ceiling (50 MiB).
const MaxUploadBytes int64 = 52428800

// MinTextChars is the number of characters (after trimming) a text extraction
// method must exceed for its output to be accepted.
const MinTextChars = 100

// AllowedExtensions holds the allowed file extensions for contract uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without dot) may be uploaded.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat maps an extension to a stored format, or "" when unsupported.
func MapExtToFormat(ext string) string {
	if NormalizeExt(ext) == "pdf" {
		return FormatPDF
	}
	return ""
}
