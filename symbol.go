package docpilot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultSymbolPatterns match the API and component names found in
// ArkTS/TypeScript style reference docs. Capture group 1, when present,
// is the symbol; otherwise the whole match is.
var DefaultSymbolPatterns = []string{
	// Declarations: class Foo, export interface Bar, declare enum Baz.
	`\b(?:class|interface|enum|function|struct|type|namespace)\s+([A-Za-z_$][\w$]*)`,
	// Decorators: @Component, @State.
	`@([A-Z][A-Za-z0-9]+)`,
	// Library-qualified dotted names: router.pushUrl, @ohos.multimedia.image.
	`@?[a-z][A-Za-z0-9_]+(?:\.[A-Za-z_][A-Za-z0-9_]+)+`,
	// UpperCamelCase with at least two humps: ForEach, TextInput.
	`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+\b`,
	// lowerCamelCase: onClick, pushUrl.
	`\b[a-z][a-z0-9]*(?:[A-Z][a-z0-9]*)+\b`,
	// Call-like identifiers: build(), aboutToAppear ().
	`\b([A-Za-z_]\w*)\s*\(`,
}

// SymbolKind classifies how a symbol occurs in its line.
type SymbolKind string

// SymbolKind constants. The zero value is a plain mention.
const (
	SymbolPlain     SymbolKind = ""
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolEnum      SymbolKind = "enum"
	SymbolFunction  SymbolKind = "function"
	SymbolStruct    SymbolKind = "struct"
	SymbolComponent SymbolKind = "component"
	SymbolDecorator SymbolKind = "decorator"
	SymbolCall      SymbolKind = "call"
)

// Valid reports whether k is a known kind.
func (k SymbolKind) Valid() bool {
	switch k {
	case SymbolPlain, SymbolClass, SymbolInterface, SymbolEnum, SymbolFunction,
		SymbolStruct, SymbolComponent, SymbolDecorator, SymbolCall:
		return true
	}
	return false
}

// Declaration reports whether k names a declared type or function.
func (k SymbolKind) Declaration() bool {
	switch k {
	case SymbolClass, SymbolInterface, SymbolEnum, SymbolFunction, SymbolStruct, SymbolComponent:
		return true
	}
	return false
}

// declarationKeywords map a keyword directly preceding a name to its kind.
var declarationKeywords = map[string]SymbolKind{
	"class":     SymbolClass,
	"interface": SymbolInterface,
	"enum":      SymbolEnum,
	"function":  SymbolFunction,
	"struct":    SymbolStruct,
}

// declarationModifiers may precede a declaration keyword at the start of
// a line.
var declarationModifiers = map[string]bool{
	"export": true, "declare": true, "default": true, "abstract": true, "async": true,
}

// callStopWords are keywords and collection helpers that look like calls.
var callStopWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"new": true, "function": true, "class": true, "interface": true,
	"enum": true, "struct": true, "catch": true, "map": true,
	"filter": true, "reduce": true, "typeof": true,
}

// dottedStopSuffixes rejects dotted tokens that are file names or hosts.
var dottedStopSuffixes = map[string]bool{
	"md": true, "markdown": true, "png": true, "jpg": true, "jpeg": true,
	"gif": true, "svg": true, "webp": true, "json": true, "json5": true,
	"ts": true, "ets": true, "js": true, "html": true, "txt": true,
	"yaml": true, "yml": true, "xml": true, "so": true, "hap": true,
	"har": true, "hsp": true, "zip": true, "com": true, "cn": true,
	"org": true, "net": true, "io": true,
}

// PatternDetector is a SymbolDetector driven by regular expressions.
type PatternDetector struct {
	patterns  []*regexp.Regexp
	minLength int
}

// Compile-time interface verification.
var (
	_ SymbolDetector = (*PatternDetector)(nil)
	_ Fingerprinter  = (*PatternDetector)(nil)
)

// NewPatternDetector compiles patterns. An empty list selects
// DefaultSymbolPatterns. Symbols shorter than minLength runes are dropped.
func NewPatternDetector(patterns []string, minLength int) (*PatternDetector, error) {
	if len(patterns) == 0 {
		patterns = DefaultSymbolPatterns
	}
	d := &PatternDetector{minLength: minLength}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile symbol pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// Detect returns the symbols in line. When spans overlap the leftmost,
// then longest, wins. Each span is classified by the text around it.
func (d *PatternDetector) Detect(line string) []Span {
	var found []Span
	for _, re := range d.patterns {
		for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			text := line[start:end]
			if !d.accept(text) {
				continue
			}
			found = append(found, Span{Text: text, Start: start, End: end})
		}
	}
	if len(found) == 0 {
		return nil
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End > found[j].End
	})

	spans := found[:0]
	lastEnd := -1
	for _, s := range found {
		if s.Start < lastEnd {
			continue
		}
		lastEnd = s.End
		s.Kind = classify(line, s.Start, s.End)
		if s.Kind == SymbolCall && callStopWords[s.Text] {
			continue
		}
		spans = append(spans, s)
	}
	if len(spans) == 0 {
		return nil
	}
	return spans
}

// classify derives the kind of the symbol at line[start:end].
func classify(line string, start, end int) SymbolKind {
	prefix := strings.Fields(line[:start])
	if n := len(prefix); n > 0 {
		if kind, ok := declarationKeywords[prefix[n-1]]; ok {
			declared := true
			for _, w := range prefix[:n-1] {
				if !declarationModifiers[w] {
					declared = false
					break
				}
			}
			if declared {
				return kind
			}
		}
	}

	if start > 0 && line[start-1] == '@' {
		return SymbolDecorator
	}

	if strings.HasPrefix(strings.TrimLeft(line[end:], " \t"), "(") {
		text := line[start:end]
		if i := strings.LastIndexByte(text, '.'); i >= 0 && callStopWords[text[i+1:]] {
			return SymbolPlain
		}
		return SymbolCall
	}
	return SymbolPlain
}

// IsComponentDecorator reports whether line opens with the @Component
// decorator, which turns the next struct declaration into a component.
func IsComponentDecorator(line string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "@Component")
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	r := rest[0]
	return !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
}

// Fingerprint returns the detector settings in canonical form. Records
// extracted under different settings differ.
func (d *PatternDetector) Fingerprint() string {
	var b strings.Builder
	for _, re := range d.patterns {
		b.WriteString(re.String())
		b.WriteByte(0)
	}
	fmt.Fprintf(&b, "min=%d", d.minLength)
	return b.String()
}

func (d *PatternDetector) accept(text string) bool {
	if len([]rune(text)) < d.minLength {
		return false
	}
	if i := strings.LastIndexByte(text, '.'); i >= 0 {
		if dottedStopSuffixes[strings.ToLower(text[i+1:])] {
			return false
		}
	}
	return true
}
