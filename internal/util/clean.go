package util

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Typographic punctuation that chat clients and spreadsheets substitute for
// the ASCII characters people type, plus C1 control characters left over from
// Windows-1252 text.
var punctuationReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201C", "\"", "\u201D", "\"",
	"\u2013", "-", "\u2014", "--", "\u2026", "...", "\u00a0", " ",
	"\u0091", "'", "\u0092", "'", "\u0093", "\"", "\u0094", "\"",
	"\u0096", "-", "\u0097", "--",
)

// CleanText repairs user supplied text before it is stored. It drops a
// leading BOM and replaces invalid UTF-8 with U+FFFD; typographic punctuation
// is folded to ASCII.
func CleanText(s, src string) string {
	s = strings.TrimPrefix(s, string(utf8BOM))
	if !utf8.ValidString(s) {
		log.WithField("source", src).Warn("Invalid UTF-8, replacing invalid characters")
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return punctuationReplacer.Replace(s)
}

// SkipBOM returns a reader over r without a leading UTF-8 byte order mark,
// which spreadsheet programs write at the start of CSV files.
func SkipBOM(r io.Reader) io.Reader {
	head := make([]byte, len(utf8BOM))
	n, err := io.ReadFull(r, head)
	head = head[:n]
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return io.MultiReader(bytes.NewReader(head), errReader{err})
	}
	if bytes.Equal(head, utf8BOM) {
		return r
	}
	return io.MultiReader(bytes.NewReader(head), r)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
