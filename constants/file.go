package constants

import "strings"

// AllowedExtensions holds the file extensions accepted by the upload endpoint.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// AllowedContentTypes holds the sniffed MIME types accepted by the upload endpoint.
var AllowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	// DetectContentType reports octet-stream for short or unusual PDF prologues.
	"application/octet-stream": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
