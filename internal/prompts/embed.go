// ABOUTME: Embeds the built-in style templates into the binary via go:embed
// ABOUTME: Used as the lowest-precedence template source

package prompts

import "embed"

//go:embed templates/*.md
var embeddedFS embed.FS
