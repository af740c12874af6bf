package recognition

import "strings"

// Event is one notification of a recognition session. It is one of Started,
// Result, Error or Ended.
type Event interface {
	isEvent()
}

// Started reports that the platform began listening.
type Started struct{}

// Fragment is one recognized segment.
type Fragment struct {
	Transcript string
	Final      bool
}

// Result carries the session's fragments. Index is the first fragment that
// changed since the previous Result.
type Result struct {
	Index     int
	Fragments []Fragment
}

// Error reports a recognition failure. The session still ends with Ended.
type Error struct {
	Code   Code
	Detail string
}

// Ended reports that the session is over.
type Ended struct{}

func (Started) isEvent() {}
func (Result) isEvent()  {}
func (Error) isEvent()   {}
func (Ended) isEvent()   {}

// Aggregate joins the fragments from r.Index onward into one transcript.
// The transcript is final only when every one of those fragments is final.
func Aggregate(r Result) (transcript string, isFinal bool) {
	if r.Index < 0 || r.Index >= len(r.Fragments) {
		return "", false
	}
	var sb strings.Builder
	isFinal = true
	for _, f := range r.Fragments[r.Index:] {
		sb.WriteString(f.Transcript)
		if !f.Final {
			isFinal = false
		}
	}
	return strings.TrimSpace(sb.String()), isFinal
}
