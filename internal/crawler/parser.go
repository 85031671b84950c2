package crawler

import (
	"io"
	"iter"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/spidercrab/internal/model"
)

// SkipClass is the class token that excludes an element from validation and traversal.
const SkipClass = "scrab-skip"

// Parser extracts references from HTML documents.
// A Parser holds the base URL of one document and is not reused.
type Parser struct {
	// origin is the normalized URL of the page being parsed.
	origin string

	// baseURL resolves relative references. It starts as the origin and is
	// replaced by the first <base href> of the document.
	baseURL *url.URL
}

// Extraction is the result of parsing one HTML document.
type Extraction struct {
	doc      *html.Node
	parser   *Parser
	title    string
	hasTitle bool
}

// NewParser creates a parser for a page served at origin.
// origin must be an absolute URL.
func NewParser(origin string) (*Parser, error) {
	return NewParserAt(origin, origin)
}

// NewParserAt creates a parser for the page origin whose body was served from
// location, typically the URL reached after redirects. References are
// attributed to origin and resolved against location.
func NewParserAt(origin, location string) (*Parser, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, model.ErrNotAbsolute
	}
	return &Parser{origin: origin, baseURL: u}, nil
}

// Parse is a shorthand for NewParser followed by Parser.Parse.
func Parse(content io.Reader, origin string) (*Extraction, error) {
	p, err := NewParser(origin)
	if err != nil {
		return nil, err
	}
	return p.Parse(content)
}

// Parse parses content and locates the title and the base URL.
// References are produced lazily by Extraction.References.
func (p *Parser) Parse(content io.Reader) (*Extraction, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	e := &Extraction{doc: doc, parser: p}
	baseFound := false
	for n := range walk(doc) {
		if n.Type != html.ElementNode || n.Namespace != "" {
			continue
		}
		switch n.Data {
		case "title":
			if e.hasTitle {
				continue
			}
			if text := strings.TrimSpace(textContent(n)); text != "" {
				e.title = text
				e.hasTitle = true
			}
		case "base":
			if baseFound {
				continue
			}
			if href, ok := getAttr(n, "href"); ok {
				baseFound = true
				if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
					p.baseURL = p.baseURL.ResolveReference(ref)
				}
			}
		}
	}
	return e, nil
}

// Title returns the trimmed text of the first non-empty <title>.
func (e *Extraction) Title() string {
	return e.title
}

// HasTitle reports whether the document has a non-empty <title> outside SVG and MathML.
func (e *Extraction) HasTitle() bool {
	return e.hasTitle
}

// References yields every <a>, <link>, <img> and <script> in document order.
func (e *Extraction) References() iter.Seq[model.Reference] {
	return func(yield func(model.Reference) bool) {
		index := 0
		for n := range walk(e.doc) {
			if n.Type != html.ElementNode || n.Namespace != "" {
				continue
			}
			ref, ok := e.parser.reference(n)
			if !ok {
				continue
			}
			ref.Index = index
			index++
			if !yield(ref) {
				return
			}
		}
	}
}

// reference converts an element to a Reference. ok is false for elements
// that carry no reference.
func (p *Parser) reference(n *html.Node) (model.Reference, bool) {
	ref := model.Reference{Origin: p.origin}
	switch n.Data {
	case "a":
		ref.Kind, ref.Attribute = model.KindLink, "href"
	case "link":
		ref.Kind, ref.Attribute = model.KindStylesheet, "href"
	case "img":
		ref.Kind, ref.Attribute = model.KindImage, "src"
	case "script":
		ref.Kind, ref.Attribute = model.KindScript, "src"
	default:
		return ref, false
	}

	ref.Target, ref.HasTarget = getAttr(n, ref.Attribute)
	ref.Skip = hasClass(n, SkipClass)
	ref.Snippet = renderStartTag(n)

	if ref.Kind == model.KindScript && !ref.HasTarget {
		ref.Inline = textContent(n)
	}
	if !ref.Blank() {
		ref.Resolved, ref.ResolveErr = model.ResolveReference(p.baseURL, ref.Target)
	}
	return ref, true
}

// walk yields every node of the tree in document order.
func walk(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var visit func(*html.Node) bool
		visit = func(n *html.Node) bool {
			if !yield(n) {
				return false
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if !visit(c) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := range walk(n) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// hasClass reports whether the class attribute of n contains token exactly.
func hasClass(n *html.Node, token string) bool {
	class, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == token {
			return true
		}
	}
	return false
}

// renderStartTag renders the opening tag of n, e.g. <img src="" alt="logo">.
func renderStartTag(n *html.Node) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Data)
	for _, attr := range n.Attr {
		sb.WriteByte(' ')
		if attr.Namespace != "" {
			sb.WriteString(attr.Namespace)
			sb.WriteByte(':')
		}
		sb.WriteString(attr.Key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(attr.Val))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
// ok is false when the attribute is absent.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
