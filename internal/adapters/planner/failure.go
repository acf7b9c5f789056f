package planner

import (
	"errors"
	"net/http"

	"vitality/internal/domain/member"
)

// User-facing failure messages.
const (
	MsgTimeout          = "Request timeout. The API took too long to respond."
	MsgUnreachable      = "Failed to connect to fitness API. Please check if the service is running."
	MsgEndpointNotFound = "API endpoint not found. Please check FITNESS_API_URL configuration."
	MsgInvalidCSV       = "Invalid CSV format. Please check your file structure."
	MsgEmptyResponse    = "Empty response from CSV processing API"
	MsgGenerateTimeout  = "Plan generation timed out. Try again with fewer members."
	MsgInternal         = "Internal server error. Please try again later."
)

// Failure is the HTTP status and message a planner error is reported with.
type Failure struct {
	Status  int
	Message string
}

// DescribeAssign maps an error from AssignProgramsCSV or AssignPrograms.
// A 422 from upstream becomes the fixed invalid-CSV message.
func DescribeAssign(err error) Failure {
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnprocessableEntity {
		return Failure{http.StatusUnprocessableEntity, MsgInvalidCSV}
	}
	return DescribeForward(err)
}

// DescribeForward maps an error from ForwardCSV. Upstream statuses other
// than 404 are kept together with the upstream detail.
func DescribeForward(err error) Failure {
	var se *StatusError
	var ij *InvalidJSONError
	var de *member.DecodeError
	switch {
	case errors.Is(err, ErrTimeout):
		return Failure{http.StatusRequestTimeout, MsgTimeout}
	case errors.Is(err, ErrUnreachable):
		return Failure{http.StatusServiceUnavailable, MsgUnreachable}
	case errors.As(err, &se):
		if se.Status == http.StatusNotFound {
			return Failure{http.StatusInternalServerError, MsgEndpointNotFound}
		}
		return Failure{se.Status, se.Detail}
	case errors.Is(err, ErrEmptyBody):
		return Failure{http.StatusInternalServerError, MsgEmptyResponse}
	case errors.As(err, &ij):
		return Failure{http.StatusInternalServerError, "Invalid CSV response format. Expected JSON but received: " + ij.Snippet + "..."}
	case errors.As(err, &de):
		return Failure{http.StatusInternalServerError, de.Error()}
	default:
		return Failure{http.StatusInternalServerError, MsgInternal}
	}
}

// DescribeGenerate maps an error from GeneratePlans.
func DescribeGenerate(err error) Failure {
	var se *StatusError
	var de *member.DecodeError
	switch {
	case errors.Is(err, ErrTimeout):
		return Failure{http.StatusRequestTimeout, MsgGenerateTimeout}
	case errors.Is(err, ErrUnreachable):
		return Failure{http.StatusServiceUnavailable, MsgUnreachable}
	case errors.As(err, &se):
		return Failure{se.Status, se.Detail}
	case errors.As(err, &de):
		return Failure{http.StatusInternalServerError, de.Error()}
	default:
		return Failure{http.StatusInternalServerError, "Failed to generate plans"}
	}
}
