//go:build !debug

package ui

import (
	"embed"
	"io/fs"
)

//go:embed dist
var embedded embed.FS

// DistFS returns the embedded front end rooted at dist/ (production: baked into binary).
func DistFS() fs.FS {
	sub, err := fs.Sub(embedded, "dist")
	if err != nil {
		panic(err) // dist is embedded at compile time
	}
	return sub
}
