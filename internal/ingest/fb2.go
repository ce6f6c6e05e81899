package ingest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"pubcat/internal/publication"
	"pubcat/internal/sanitize"
)

var (
	errEmpty   = errors.New("empty file")
	errNoTitle = errors.New("no title")
)

type fb2Author struct {
	First    string `xml:"first-name"`
	Middle   string `xml:"middle-name"`
	Last     string `xml:"last-name"`
	Nickname string `xml:"nickname"`
}

func (a fb2Author) name() string {
	n := strings.Join(strings.Fields(a.First+" "+a.Middle+" "+a.Last), " ")
	if n == "" {
		n = strings.TrimSpace(a.Nickname)
	}
	return n
}

type fb2Description struct {
	TitleInfo struct {
		Title   string      `xml:"book-title"`
		Authors []fb2Author `xml:"author"`
		Date    struct {
			Value string `xml:"value,attr"`
			Text  string `xml:",chardata"`
		} `xml:"date"`
		Annotation struct {
			Inner string `xml:",innerxml"`
		} `xml:"annotation"`
	} `xml:"title-info"`
	PublishInfo struct {
		Year string `xml:"year"`
	} `xml:"publish-info"`
}

// ParseFB2 extracts a Book from an FB2 document. It tries the XML decoder
// first and falls back to regex extraction for broken markup.
func ParseFB2(data []byte) (publication.Book, error) {
	if len(data) == 0 {
		return publication.Book{}, errEmpty
	}
	text, isUTF8 := normalizeEncoding(data)
	book, err := parseXML(text, isUTF8)
	if err == nil {
		return book, nil
	}
	book, rerr := parseWithRegex(bytes.ToValidUTF8(text, []byte(" ")))
	if rerr != nil {
		return book, fmt.Errorf("xml: %v; regex: %w", err, rerr)
	}
	return book, nil
}

// normalizeEncoding converts UTF-16 and windows-1251 input to UTF-8. Other
// declared charsets are left to the XML decoder.
func normalizeEncoding(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return data, false
	}
	if (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return out, true
		}
	}
	if len(data) > 10 && data[1] == 0 && data[3] == 0 {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return out, true
		}
	}
	header := strings.ToLower(string(data[:min(len(data), 500)]))
	if strings.Contains(header, "windows-1251") || strings.Contains(header, "cp1251") {
		if out, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
			return out, true
		}
	}
	return data, false
}

func parseXML(data []byte, isUTF8 bool) (publication.Book, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	if isUTF8 {
		d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	} else {
		d.CharsetReader = charsetReader
	}

	for {
		t, err := d.Token()
		if err == io.EOF {
			return publication.Book{}, errNoTitle
		}
		if err != nil {
			return publication.Book{}, err
		}
		se, ok := t.(xml.StartElement)
		if !ok || se.Name.Local != "description" {
			continue
		}
		var desc fb2Description
		if err := d.DecodeElement(&desc, &se); err != nil {
			return publication.Book{}, err
		}
		return bookFromDescription(desc)
	}
}

func bookFromDescription(desc fb2Description) (publication.Book, error) {
	ti := desc.TitleInfo
	title := sanitize.Text(ti.Title)
	if title == "" {
		return publication.Book{}, errNoTitle
	}
	var authors []string
	for _, a := range ti.Authors {
		if n := a.name(); n != "" {
			authors = append(authors, n)
		}
	}

	year, ok := parseYear(ti.Date.Value)
	if !ok {
		year, ok = parseYear(ti.Date.Text)
	}
	if !ok {
		year, _ = parseYear(desc.PublishInfo.Year)
	}

	book := publication.NewBook(title, year, sanitize.Names(authors)...)
	return book.WithMeta(publication.Meta{Annotation: sanitize.Text(ti.Annotation.Inner)}), nil
}

var (
	fullYearRe  = regexp.MustCompile(`(?:^|\D)(-?\d{3,4})(?:\D|$)`)
	shortYearRe = regexp.MustCompile(`-?\d{1,4}`)
)

// parseYear takes the first 3-4 digit run ("12.03.1999" is 1999) and falls
// back to shorter runs such as "-44".
func parseYear(s string) (int, bool) {
	m := ""
	if sub := fullYearRe.FindStringSubmatch(s); sub != nil {
		m = sub[1]
	} else {
		m = shortYearRe.FindString(s)
	}
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	return y, err == nil
}

var (
	reTitle      = regexp.MustCompile(`(?is)<book-title[^>]*>(.*?)</book-title>`)
	reAuthor     = regexp.MustCompile(`(?is)<author[^>]*>(.*?)</author>`)
	reFirst      = regexp.MustCompile(`(?is)<first-name[^>]*>(.*?)</first-name>`)
	reLast       = regexp.MustCompile(`(?is)<last-name[^>]*>(.*?)</last-name>`)
	reDate       = regexp.MustCompile(`(?is)<title-info.*?<date[^>]*?(?:value="([^"]*)")?[^>]*>(.*?)</date>`)
	reAnnotation = regexp.MustCompile(`(?is)<annotation[^>]*>(.*?)</annotation>`)
)

func parseWithRegex(data []byte) (publication.Book, error) {
	var title string
	if m := reTitle.FindSubmatch(data); len(m) > 1 {
		title = sanitize.Text(string(m[1]))
	}
	if title == "" {
		return publication.Book{}, errNoTitle
	}

	var authors []string
	for _, a := range reAuthor.FindAllSubmatch(data, -1) {
		fn, ln := reFirst.FindSubmatch(a[1]), reLast.FindSubmatch(a[1])
		name := ""
		if len(fn) > 1 {
			name += string(fn[1]) + " "
		}
		if len(ln) > 1 {
			name += string(ln[1])
		}
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}

	year := 0
	if m := reDate.FindSubmatch(data); len(m) > 2 {
		var ok bool
		if year, ok = parseYear(string(m[1])); !ok {
			year, _ = parseYear(string(m[2]))
		}
	}
	annotation := ""
	if m := reAnnotation.FindSubmatch(data); len(m) > 1 {
		annotation = sanitize.Text(string(m[1]))
	}

	book := publication.NewBook(title, year, sanitize.Names(authors)...)
	return book.WithMeta(publication.Meta{Annotation: annotation}), nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}
