package model

// OutcomeStatus classifies a fetch.
type OutcomeStatus int

const (
	// StatusSuccess means the server answered with a 2xx status.
	StatusSuccess OutcomeStatus = iota

	// StatusHTTPError means the server answered with a non-2xx status.
	StatusHTTPError

	// StatusTransportError means no usable response was received.
	StatusTransportError
)

// String returns the status name used in reports.
func (s OutcomeStatus) String() string {
	switch s {
	case StatusSuccess:
		return "ok"
	case StatusHTTPError:
		return "http-error"
	case StatusTransportError:
		return "transport-error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OutcomeStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = StatusSuccess
	case "http-error":
		*s = StatusHTTPError
	default:
		*s = StatusTransportError
	}
	return nil
}

// FetchOutcome is the classified result of fetching one URL.
type FetchOutcome struct {
	// URL is the normalized URL that was requested.
	URL string

	// FinalURL is the URL after redirects. Relative references in the body
	// resolve against it.
	FinalURL string

	// Status classifies the outcome.
	Status OutcomeStatus

	// Code is the HTTP status code, zero for transport errors.
	Code int

	// Reason describes a transport error.
	Reason string

	// ContentType is the media type without parameters, lowercased.
	ContentType string

	// Body is the UTF-8 decoded document. Nil unless the response was HTML.
	Body []byte
}

// OK reports whether the fetch succeeded.
func (o FetchOutcome) OK() bool {
	return o.Status == StatusSuccess
}

// IsHTML reports whether a body was captured for parsing.
func (o FetchOutcome) IsHTML() bool {
	return o.Status == StatusSuccess && o.Body != nil
}
