// Package title parses wiki page titles and builds their URLs.
package title

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Namespace numbers follow the usual wiki layout: even numbers are subject
// namespaces and the following odd number is their talk namespace.
type Namespace int

const (
	NamespaceSpecial      Namespace = -1
	NamespaceMain         Namespace = 0
	NamespaceTalk         Namespace = 1
	NamespaceUser         Namespace = 2
	NamespaceUserTalk     Namespace = 3
	NamespaceProject      Namespace = 4
	NamespaceProjectTalk  Namespace = 5
	NamespaceFile         Namespace = 6
	NamespaceFileTalk     Namespace = 7
	NamespaceHelp         Namespace = 12
	NamespaceHelpTalk     Namespace = 13
	NamespaceCategory     Namespace = 14
	NamespaceCategoryTalk Namespace = 15
)

// ErrInvalidTitle is returned for empty titles or titles containing reserved characters.
var ErrInvalidTitle = eris.New("invalid title")

const illegalCharacters = "#<>[]|{}"

var namespaceNames = map[Namespace]string{
	NamespaceSpecial:      "Special",
	NamespaceTalk:         "Talk",
	NamespaceUser:         "User",
	NamespaceUserTalk:     "User talk",
	NamespaceProject:      "Project",
	NamespaceProjectTalk:  "Project talk",
	NamespaceFile:         "File",
	NamespaceFileTalk:     "File talk",
	NamespaceHelp:         "Help",
	NamespaceHelpTalk:     "Help talk",
	NamespaceCategory:     "Category",
	NamespaceCategoryTalk: "Category talk",
}

var namespaceAliases = map[string]Namespace{
	"image":      NamespaceFile,
	"image talk": NamespaceFileTalk,
}

// Title is a parsed page title. The zero value is the main-namespace page with empty text
// and is never returned by Parse.
type Title struct {
	Namespace Namespace
	Text      string
}

// Parse normalises raw into a Title. Underscores become spaces, runs of whitespace collapse,
// a known namespace prefix is split off and the first letter of the text is upper-cased.
func Parse(raw string) (Title, error) {
	normalized := normalizeSpaces(strings.ReplaceAll(raw, "_", " "))
	if normalized == "" {
		return Title{}, eris.Wrap(ErrInvalidTitle, "title is empty")
	}

	if strings.ContainsAny(normalized, illegalCharacters) {
		return Title{}, eris.Wrapf(ErrInvalidTitle, "title %q contains reserved characters", normalized)
	}

	ns := NamespaceMain
	text := normalized
	if prefix, rest, found := strings.Cut(normalized, ":"); found {
		if candidate, ok := lookupNamespace(prefix); ok {
			ns = candidate
			text = strings.TrimSpace(rest)
		}
	}

	if text == "" {
		return Title{}, eris.Wrapf(ErrInvalidTitle, "title %q has no page name", normalized)
	}

	return Title{Namespace: ns, Text: upperFirst(text)}, nil
}

// MustParse is Parse for titles known at compile time. It panics on invalid input.
func MustParse(raw string) Title {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// IsContentPage reports whether the title lives in a content namespace.
func (t Title) IsContentPage() bool {
	return t.Namespace == NamespaceMain
}

// IsTalkPage reports whether the title is a discussion page.
func (t Title) IsTalkPage() bool {
	return t.Namespace > NamespaceMain && t.Namespace%2 == 1
}

// TalkPage returns the discussion page paired with t. Special pages have none and return themselves.
func (t Title) TalkPage() Title {
	if t.Namespace < NamespaceMain || t.IsTalkPage() {
		return t
	}
	return Title{Namespace: t.Namespace + 1, Text: t.Text}
}

// SubjectPage returns the page a talk page discusses.
func (t Title) SubjectPage() Title {
	if !t.IsTalkPage() {
		return t
	}
	return Title{Namespace: t.Namespace - 1, Text: t.Text}
}

// NamespaceName returns the canonical prefix of the title's namespace, empty for main.
func (t Title) NamespaceName() string {
	return namespaceNames[t.Namespace]
}

// PrefixedText is the human readable title including its namespace.
func (t Title) PrefixedText() string {
	if name := t.NamespaceName(); name != "" {
		return name + ":" + t.Text
	}
	return t.Text
}

// DBKey is the text with spaces replaced by underscores, as stored and linked.
func (t Title) DBKey() string {
	return strings.ReplaceAll(t.Text, " ", "_")
}

// PrefixedDBKey is DBKey including the namespace prefix.
func (t Title) PrefixedDBKey() string {
	return strings.ReplaceAll(t.PrefixedText(), " ", "_")
}

// LocalURL substitutes the escaped prefixed key into articlePath, which must contain $1.
func (t Title) LocalURL(articlePath string) string {
	return strings.Replace(articlePath, "$1", escapeKey(t.PrefixedDBKey()), 1)
}

// FullURL is LocalURL prefixed with the server origin.
func (t Title) FullURL(server, articlePath string) string {
	return server + t.LocalURL(articlePath)
}

func (t Title) String() string {
	return t.PrefixedText()
}

func lookupNamespace(prefix string) (Namespace, bool) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if key == "" {
		return 0, false
	}

	for ns, name := range namespaceNames {
		if strings.ToLower(name) == key {
			return ns, true
		}
	}

	ns, ok := namespaceAliases[key]
	return ns, ok
}

func normalizeSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func upperFirst(value string) string {
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError {
		return value
	}
	return string(unicode.ToUpper(r)) + value[size:]
}

// escapeKey percent-encodes a key as a single path segment, leaving namespace colons readable.
func escapeKey(key string) string {
	return strings.ReplaceAll(url.PathEscape(key), "%3A", ":")
}
