// Package web embeds the chat page template and its static assets.
package web

import "embed"

// Assets holds templates/ and static/.
//
//go:embed templates/*.html static/*
var Assets embed.FS
