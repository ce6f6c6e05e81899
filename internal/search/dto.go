package search

import (
	"strings"

	"pubcat/internal/publication"
)

// PublicationDTO представляет данные публикации, оптимизированные для отображения
type PublicationDTO struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Authors     []string `json:"authors,omitempty"`
	Download    string   `json:"download,omitempty"`
	FullAuthors string   `json:"full_authors"` // Склеенная строка авторов для простого рендеринга
	Description string   `json:"description"`  // Describe() конкретного вида публикации
}

// SearchResult содержит агрегированный результат поиска
type SearchResult struct {
	Total     int              `json:"total"`
	From      int              `json:"from"`
	Size      int              `json:"size"`
	Canonical string           `json:"canonical"`
	Relaxed   bool             `json:"relaxed,omitempty"`
	Items     []PublicationDTO `json:"items"`
}

// ToDTO мапит запись каталога в DTO; неизвестный вид даёт пустое описание
func ToDTO(r publication.Record) PublicationDTO {
	fullAuthors := strings.Join(r.Authors, ", ")
	if fullAuthors == "" {
		fullAuthors = "Unknown"
	}
	desc, _ := r.Describe()

	dl := ""
	if r.Source.Container != "" && r.Source.Filename != "" {
		dl = r.Source.Container + "/" + r.Source.Filename
	}

	return PublicationDTO{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Title:       r.Title,
		Year:        r.Year,
		Authors:     r.Authors,
		Download:    dl,
		FullAuthors: fullAuthors,
		Description: desc,
	}
}
