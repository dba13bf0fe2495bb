package transcription

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Strategy reads a transcript out of a trimmed response body.
// It reports false when the body does not have the shape it understands.
type Strategy func(body string) (string, bool)

// DefaultStrategies is the extraction order used by Extract
var DefaultStrategies = []Strategy{StrictJSON, ScanTranscriptField, RawBody}

// Extract runs the default strategies against body
func Extract(body string) (string, error) {
	return NewParser().Extract(body)
}

// Parser applies an ordered list of strategies; the first non-empty result wins
type Parser struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewParser creates a parser, using DefaultStrategies when none are given
func NewParser(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Parser{strategies: strategies}
}

// WithLogger makes the parser log every strategy that yields nothing at debug level
func (p *Parser) WithLogger(logger *slog.Logger) *Parser {
	p.logger = logger
	return p
}

// Extract trims body, applies each strategy in order and unescapes the winner
func (p *Parser) Extract(body string) (string, error) {
	trimmed := TrimBody(body)

	for i, strategy := range p.strategies {
		text, ok := strategy(trimmed)
		if ok {
			text = Unescape(text)
		}
		if text != "" {
			return text, nil
		}
		if p.logger != nil {
			p.logger.Debug("Extraction strategy yielded nothing",
				slog.Int("strategy", i),
				slog.String("kind", string(KindParseFailure)))
		}
	}

	return "", Errorf(KindEmptyTranscript, "Empty transcript response.")
}

// TrimBody strips whitespace, byte-order marks and zero-width characters from both ends
func TrimBody(body string) string {
	return strings.TrimFunc(body, func(r rune) bool {
		switch r {
		case '\uFEFF', '\u200B', '\u200C', '\u200D', '\u2060':
			return true
		}
		return unicode.IsSpace(r)
	})
}

// Unescape expands literal \n, \r and \" sequences and trims whitespace
func Unescape(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `\r`, "\r")
	text = strings.ReplaceAll(text, `\"`, `"`)
	return strings.TrimSpace(text)
}

// objectSpan returns body[first '{' : last '}'] inclusive, or body when there is no such span
func objectSpan(body string) string {
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start >= 0 && end > start {
		return body[start : end+1]
	}
	return body
}

// StrictJSON parses the outermost object and reads its string "transcript" field
func StrictJSON(body string) (string, bool) {
	obj := objectSpan(body)
	if !gjson.Valid(obj) {
		return "", false
	}

	parsed := gjson.Parse(obj)
	if !parsed.IsObject() {
		return "", false
	}

	field := parsed.Get("transcript")
	if field.Type != gjson.String {
		return "", false
	}
	return field.Str, true
}

// ScanTranscriptField finds a "transcript" key case-insensitively and returns
// the raw contents of the string value that follows it. Escapes are left in place.
//
// Only whitespace may sit between the key, the colon and the opening quote.
// A key followed by anything else (a nested object, a number) is skipped rather
// than matched against a quote further along the body, so a non-string
// transcript never picks up text from an unrelated field.
func ScanTranscriptField(body string) (string, bool) {
	const key = `"transcript"`

	for from := 0; from < len(body); {
		idx := indexFoldASCII(body[from:], key)
		if idx < 0 {
			return "", false
		}
		pos := from + idx + len(key)
		from = pos

		pos = skipSpace(body, pos)
		if pos >= len(body) || body[pos] != ':' {
			continue
		}
		pos = skipSpace(body, pos+1)
		if pos >= len(body) || body[pos] != '"' {
			continue
		}

		if end := closingQuote(body, pos+1); end >= 0 {
			return body[pos+1 : end], true
		}
		return "", false
	}
	return "", false
}

// RawBody treats the whole body as the transcript after stripping one layer of
// surrounding quotes. Well-formed JSON objects are left to the other strategies.
func RawBody(body string) (string, bool) {
	if obj := objectSpan(body); gjson.Valid(obj) && gjson.Parse(obj).IsObject() {
		return "", false
	}

	text := strings.TrimSpace(body)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	return text, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// closingQuote returns the index of the first unescaped '"' at or after i
func closingQuote(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i
		default:
			i++
		}
	}
	return -1
}

// indexFoldASCII is strings.Index with ASCII case folding; byte offsets match s
func indexFoldASCII(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		j := 0
		for j < n && lowerASCII(s[i+j]) == lowerASCII(substr[j]) {
			j++
		}
		if j == n {
			return i
		}
	}
	return -1
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
