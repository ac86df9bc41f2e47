package inference

import "github.com/kailas-cloud/medlens/internal/domain/candidate"

// Fuse concatenates text candidates followed by image candidates. The two
// scales are not comparable, so the result is never re-sorted.
func Fuse(text, image []candidate.Candidate) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(text)+len(image))
	out = append(out, text...)
	return append(out, image...)
}
