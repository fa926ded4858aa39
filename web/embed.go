// Package web embeds the views and the static web root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:views wwwroot
var content embed.FS

// Views returns the view tree rooted at views/.
func Views() fs.FS {
	sub, err := fs.Sub(content, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static returns the web root served by the static files stage.
func Static() fs.FS {
	sub, err := fs.Sub(content, "wwwroot")
	if err != nil {
		panic(err)
	}
	return sub
}
