// Package frontend embeds the demo chat page served at /demo.
package frontend

import _ "embed"

//go:embed index.html
var IndexHTML []byte
