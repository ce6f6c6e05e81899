package publication

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindBook     Kind = "book"
	KindArticle  Kind = "article"
	KindMagazine Kind = "magazine"
)

var ErrUnknownKind = errors.New("unknown publication kind")

// Kinds lists every supported kind in display order.
func Kinds() []Kind {
	return []Kind{KindBook, KindArticle, KindMagazine}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBook, KindArticle, KindMagazine:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }
