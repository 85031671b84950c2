package model

import "fmt"

// Kind identifies the HTML element a Reference was extracted from.
type Kind int

const (
	// KindLink is an <a> element. Its target is read from href.
	KindLink Kind = iota

	// KindImage is an <img> element. Its target is read from src.
	KindImage

	// KindScript is a <script> element. Its target is read from src; a script
	// without src carries inline content instead.
	KindScript

	// KindStylesheet is a <link> element. Its target is read from href.
	KindStylesheet
)

// String returns the lowercase element kind used in reports and DOT labels.
func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	case KindScript:
		return "script"
	case KindStylesheet:
		return "stylesheet"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "link":
		*k = KindLink
	case "image":
		*k = KindImage
	case "script":
		*k = KindScript
	case "stylesheet":
		*k = KindStylesheet
	default:
		return fmt.Errorf("unknown reference kind %q", text)
	}
	return nil
}

// Reference is one outgoing reference extracted from an HTML document.
type Reference struct {
	// Kind is the element type the reference came from.
	Kind Kind `json:"kind"`

	// Attribute is the attribute the target is read from ("href" or "src").
	Attribute string `json:"attribute"`

	// Target is the raw attribute value. Meaningful only when HasTarget is true.
	Target string `json:"target,omitempty"`

	// HasTarget is false when the attribute is absent from the element.
	HasTarget bool `json:"has_target"`

	// Skip is true when the element carries the scrab-skip class token.
	Skip bool `json:"skip,omitempty"`

	// Origin is the normalized URL of the page the reference was found on.
	Origin string `json:"origin"`

	// Resolved is the normalized absolute target, empty when Target is blank,
	// absent, or could not be resolved.
	Resolved string `json:"resolved,omitempty"`

	// ResolveErr is set when a non-blank Target could not be resolved.
	ResolveErr error `json:"-"`

	// Inline holds the text content of a <script> without src.
	Inline string `json:"-"`

	// Snippet is the rendered start tag, used in finding messages.
	Snippet string `json:"snippet,omitempty"`

	// Index is the position of the reference in document order, starting at 0.
	Index int `json:"index"`
}

// Blank reports whether the target attribute is absent or only whitespace.
func (r Reference) Blank() bool {
	return !r.HasTarget || isBlank(r.Target)
}

// Traversable reports whether the crawler should follow the reference.
func (r Reference) Traversable() bool {
	return !r.Skip && r.Resolved != "" && IsFetchable(r.Resolved)
}

func isBlank(s string) bool {
	for _, c := range s {
		switch c {
		case ' ', '\t', '\n', '\r', '\f':
		default:
			return false
		}
	}
	return true
}
