package evidence

// Source tags where a candidate diagnosis came from.
type Source string

// Evidence source constants.
const (
	Text  Source = "text"
	Image Source = "image"
)

// IsValid checks if the source is one of the supported values.
func (s Source) IsValid() bool {
	return s == Text || s == Image
}

// Parse converts a raw string into a Source. An empty string parses to the
// zero Source with ok=true, meaning "any source".
func Parse(raw string) (Source, bool) {
	if raw == "" {
		return "", true
	}
	s := Source(raw)
	return s, s.IsValid()
}
