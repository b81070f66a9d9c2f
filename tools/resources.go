package tools

import (
	"embed"
	"io/fs"
)

//go:embed resources
var resources embed.FS

// MessageResource is the default benchmark input.
const MessageResource = "message.txt"

// DefaultResources returns the key pairs and the input message shipped with the binary.
func DefaultResources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(err) // the directory is embedded, it always exists
	}
	return sub
}
