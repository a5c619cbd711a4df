package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"github.com/scrypster/companion/pkg/types"
)

// pageHistory is how many recent exchanges the index page renders.
const pageHistory = 10

// PageHandler serves the chat page and its static assets.
type PageHandler struct {
	companion Companion
	index     *template.Template
	static    http.Handler
}

type pageData struct {
	Title           string
	Location        string
	Depth           int
	Mood            types.Emotion
	AdventureActive bool
	Recent          []types.Conversation
}

// NewPageHandler parses templates/index.html from assets and serves
// static/ beneath it.
func NewPageHandler(c Companion, assets fs.FS) (*PageHandler, error) {
	index, err := template.ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("handlers: parse index template: %w", err)
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("handlers: static assets: %w", err)
	}
	return &PageHandler{
		companion: c,
		index:     index,
		static:    http.StripPrefix("/static/", http.FileServerFS(static)),
	}, nil
}

// Index handles GET /.
func (p *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "not found", nil)
		return
	}

	mem, err := p.companion.Memory(r.Context())
	if err != nil {
		log.Printf("handlers: index memory: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	world, err := p.companion.World(r.Context())
	if err != nil {
		log.Printf("handlers: index world: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	recent := mem.Conversations
	if len(recent) > pageHistory {
		recent = recent[:pageHistory]
	}
	// Memory is newest first; the page reads top to bottom.
	ordered := make([]types.Conversation, len(recent))
	for i, c := range recent {
		ordered[len(recent)-1-i] = c
	}

	data := pageData{
		Title:           "Companion",
		Location:        world.Location.Name,
		Depth:           mem.RelationshipDepth,
		Mood:            mem.EmotionalPatterns.RecentMood,
		AdventureActive: world.AdventureActive,
		Recent:          ordered,
	}

	var buf bytes.Buffer
	if err := p.index.Execute(&buf, data); err != nil {
		log.Printf("handlers: render index: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Static serves /static/.
func (p *PageHandler) Static(w http.ResponseWriter, r *http.Request) {
	p.static.ServeHTTP(w, r)
}
