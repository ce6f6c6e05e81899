package search

import (
	"context"
	"errors"
	"fmt"

	"pubcat/internal/logger"
	"pubcat/internal/metrics"
	"pubcat/internal/parser"
	"pubcat/internal/publication"
)

const (
	DefaultSize = 10
	MaxSize     = 1000
)

// ErrBadQuery оборачивает ошибки разбора запроса
var ErrBadQuery = errors.New("bad query")

// Searcher общий интерфейс локального сервиса и gRPC-клиента
type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (*SearchResult, error)
	Get(ctx context.Context, id string) (publication.Record, error)
}

// Backend то, что сервису нужно от хранилища
type Backend interface {
	Search(ctx context.Context, q parser.Node, from, size int) (int, []publication.Record, error)
	Get(ctx context.Context, id string) (publication.Record, error)
}

// Service инкапсулирует логику поиска поверх каталога
type Service struct {
	store Backend
}

func New(store Backend) *Service {
	return &Service{store: store}
}

// Search разбирает запрос, ищет в каталоге и мапит результат в DTO.
// Если точный запрос ничего не нашёл, он повторяется с contains вместо equals.
func (s *Service) Search(ctx context.Context, query string, from, size int) (*SearchResult, error) {
	from, size = Clamp(from, size)

	q, err := parser.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadQuery, err)
	}

	total, recs, err := s.store.Search(ctx, q, from, size)
	if err != nil {
		return nil, err
	}

	relaxed := false
	if total == 0 {
		if rq, changed := parser.Relax(q); changed {
			logger.For(ctx).WithField("query", parser.Canonical(q)).Info("search.relaxed")
			metrics.SearchFallbacks.Inc()
			total, recs, err = s.store.Search(ctx, rq, from, size)
			if err != nil {
				return nil, err
			}
			q, relaxed = rq, true
		}
	}

	res := &SearchResult{
		Total:     total,
		From:      from,
		Size:      size,
		Canonical: parser.Canonical(q),
		Relaxed:   relaxed,
		Items:     make([]PublicationDTO, 0, len(recs)),
	}
	for _, r := range recs {
		res.Items = append(res.Items, ToDTO(r))
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id string) (publication.Record, error) {
	return s.store.Get(ctx, id)
}

// Clamp применяет значения по умолчанию и верхнюю границу размера страницы
func Clamp(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return from, size
}
