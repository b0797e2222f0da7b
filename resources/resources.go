// Package resources embeds the task definitions shipped with the binary.
package resources

import "embed"

//go:embed tasks/*.yaml
var TaskFiles embed.FS
