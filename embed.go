// Package supportchat embeds the web assets of the support chat server.
package supportchat

import "embed"

// TemplateFS holds the page layouts, the sign-in and home pages, and the partials re-rendered for
// conversation list events.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS holds the browser transcript merger script and the stylesheet served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
