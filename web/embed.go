// Package web embeds the HTML templates used for printable reports.
package web

import "embed"

// Templates embeds report templates rendered before PDF conversion.
//
//go:embed templates/*.html
var Templates embed.FS
