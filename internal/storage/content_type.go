package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// documentTypes maps accepted document extensions to their MIME type.
var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
}

// DetectContentType returns the MIME type for a key, preferring the known
// document types, then the mime table, then sniffing head.
func DetectContentType(key string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ct, ok := documentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}

// IsDocument reports whether contentType is one of the accepted upload types.
func IsDocument(contentType string) bool {
	base := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	for _, ct := range documentTypes {
		if strings.Split(ct, ";")[0] == base && base != "text/markdown" {
			return true
		}
	}
	return false
}
