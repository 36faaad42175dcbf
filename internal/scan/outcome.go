package scan

import "net/http"

// Outcome classifies how a scan request ended.
type Outcome int

const (
	OutcomeLogged Outcome = iota
	OutcomeUnauthenticated
	OutcomeNoSheet
	OutcomeNoImage
	OutcomeNoMatrix
	OutcomeNoMatch
	OutcomeInternal
)

const (
	MsgLogged          = "Logged successfully"
	MsgUnauthenticated = "Not authenticated"
	MsgNoImage         = "No image uploaded"
	MsgNoMatrix        = "No matrix number found"
	MsgNoMatch         = "No match found on Discogs"
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLogged:
		return "logged"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeNoSheet:
		return "no_sheet"
	case OutcomeNoImage:
		return "no_image"
	case OutcomeNoMatrix:
		return "no_matrix"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "internal"
	}
}

// StatusCode is the HTTP status a JSON response for o carries. NoSheet is
// answered with a redirect, so it has no JSON status of its own.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeLogged:
		return http.StatusOK
	case OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case OutcomeNoSheet:
		return http.StatusSeeOther
	case OutcomeNoImage:
		return http.StatusBadRequest
	case OutcomeNoMatrix, OutcomeNoMatch:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
