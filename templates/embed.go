// Package templates embeds the default meterbot configuration.
package templates

import "embed"

//go:embed meterbot.yaml
var FS embed.FS
