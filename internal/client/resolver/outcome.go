package resolver

import "fmt"

// Kind tags a resolution outcome.
type Kind int

// The zero Kind is not a valid outcome.
const (
	Resolved Kind = iota + 1
	Queued
	Failed
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Queued:
		return "queued"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure says why a Failed outcome happened.
type Failure int

const (
	NoFailure Failure = iota
	// MissingURL: 200 response without a "url" field.
	MissingURL
	// BadStatus: any status other than 200 or 404.
	BadStatus
	// Fault: transport error or unreadable body.
	Fault
)

const (
	queuedText     = "Track not found, it is added in the downloading queue and will be available shortly."
	missingURLText = "The URL is not available in the response."
	badStatusText  = "Failed to fetch data from API."
)

// Outcome is the classified result of a single resolver call.
type Outcome struct {
	Kind    Kind
	URL     string
	Failure Failure
	Reason  string
}

// ResolvedURL builds a Resolved outcome.
func ResolvedURL(url string) Outcome {
	return Outcome{Kind: Resolved, URL: url}
}

// QueuedOutcome builds a Queued outcome.
func QueuedOutcome() Outcome {
	return Outcome{Kind: Queued}
}

// FailedWith builds a Failed outcome of the given failure class.
func FailedWith(f Failure, reason string) Outcome {
	switch f {
	case MissingURL:
		reason = missingURLText
	case BadStatus:
		reason = badStatusText
	}
	return Outcome{Kind: Failed, Failure: f, Reason: reason}
}

// Reply renders the text sent back to the chat.
func (o Outcome) Reply() string {
	switch o.Kind {
	case Resolved:
		return "Here is the download link: " + o.URL
	case Queued:
		return queuedText
	}

	switch o.Failure {
	case MissingURL:
		return missingURLText
	case BadStatus:
		return badStatusText
	default:
		return "An error occurred: " + o.Reason
	}
}
