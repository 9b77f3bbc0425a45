package storage

import "strings"

// MaxObjectSize is the upload limit for shared resources
const MaxObjectSize = 10 * 1024 * 1024

// allowedTypes maps accepted content types to the extension used in keys
var allowedTypes = map[string]string{
	"application/pdf":    "pdf",
	"image/jpeg":         "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// Extension returns the key extension for an allowed content type
func Extension(contentType string) (string, bool) {
	ext, ok := allowedTypes[normalizeType(contentType)]
	return ext, ok
}

// Allowed reports whether contentType may be uploaded
func Allowed(contentType string) bool {
	_, ok := Extension(contentType)
	return ok
}

func normalizeType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
