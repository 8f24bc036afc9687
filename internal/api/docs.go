package api

import (
	"crypto/sha256"
	_ "embed"
	"fmt"
	"net/http"
)

//go:embed openapi.yaml
var openAPIDocument []byte

var openAPIETag = fmt.Sprintf(`"%x"`, sha256.Sum256(openAPIDocument))

// serveOpenAPI serves the embedded OpenAPI document. The swagger UI
// revalidates with If-None-Match on every load.
func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", openAPIETag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == openAPIETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}
