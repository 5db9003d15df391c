// Package web holds the page templates and browser assets compiled into the
// server binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static/*
var files embed.FS

// Templates is rooted at the module's web directory, so page templates are
// addressed as "templates/<name>.html".
func Templates() fs.FS { return files }

// Static returns the assets served under /static/.
func Static() (fs.FS, error) {
	return fs.Sub(files, "static")
}
