package appfs

import "embed"

//go:embed assets migrations rubric all:templates
var FS embed.FS
