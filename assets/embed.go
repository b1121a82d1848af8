// Package assets embeds the default catalog so the server runs without a
// CATALOG_FILE.
package assets

import "embed"

//go:embed catalog.yaml
var FS embed.FS

// DefaultCatalog returns the embedded catalog document.
func DefaultCatalog() ([]byte, error) {
	return FS.ReadFile("catalog.yaml")
}
