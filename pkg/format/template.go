package format

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultExceptionTemplate is used for failure notifications unless overridden.
const DefaultExceptionTemplate = "*{timestamp}*  \n" +
	"Exception caught in **{funcname}()**, File **\"{filename}\"**  \n" +
	"**{message}**  \n" +
	"<br>\n" +
	"Node: {machine_name} ({ip_address})\n" +
	"<br>\n" +
	"\n" +
	"```{where}```\n" +
	"\n" +
	"args: {args}  \n" +
	"kwargs: {kwargs}\n" +
	"\n" +
	"Full traceback:  \n" +
	"```{traceback}```"

// DefaultCompletionTemplate is used for completion notifications unless overridden.
const DefaultCompletionTemplate = "*{timestamp}*  \n" +
	"Function completed: **{funcname}()** in file **\"{filename}\"**  \n" +
	"Node: {machine_name} ({ip_address})  \n" +
	"args: {args}  \n" +
	"kwargs: {kwargs}"

type segment struct {
	literal string
	field   string
}

// Template is a parsed message template. Placeholders are written {name};
// {{ and }} stand for literal braces.
type Template struct {
	text     string
	segments []segment
}

// Parse parses template text.
func Parse(text string) (*Template, error) {
	t := &Template{text: text}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, errors.Wrapf(ErrMalformedTemplate, "unterminated placeholder at offset %d", i)
			}
			name := text[i+1 : i+1+end]
			if !isFieldName(name) {
				return nil, errors.Wrapf(ErrMalformedTemplate, "invalid placeholder %q at offset %d", name, i)
			}
			flush()
			t.segments = append(t.segments, segment{field: name})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, errors.Wrapf(ErrMalformedTemplate, "single '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseFor parses text and checks that every placeholder is provided by kind.
// Empty text selects the kind's default template.
func ParseFor(kind Kind, text string) (*Template, error) {
	if text == "" {
		text = kind.DefaultTemplate()
	}
	t, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(kind); err != nil {
		return nil, err
	}
	return t, nil
}

func isFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Text returns the source text.
func (t *Template) Text() string {
	return t.text
}

// Placeholders returns the field names in order of appearance, without duplicates.
func (t *Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range t.segments {
		if s.field != "" && !seen[s.field] {
			seen[s.field] = true
			names = append(names, s.field)
		}
	}
	return names
}

// Validate reports placeholders that kind does not provide.
func (t *Template) Validate(kind Kind) error {
	for _, name := range t.Placeholders() {
		if !kind.provides(name) {
			return errors.Wrapf(ErrUnknownPlaceholder, "{%s} is not available in %s templates", name, kind)
		}
	}
	return nil
}

// Render substitutes fields into the template.
func (t *Template) Render(fields Fields) (string, error) {
	var b strings.Builder
	b.Grow(len(t.text))
	for _, s := range t.segments {
		if s.field == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := fields[s.field]
		if !ok {
			return "", errors.Wrapf(ErrMissingField, "{%s}", s.field)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
