package osrm

import "fmt"

// ResponseError is an answer whose code is not "Ok", e.g. NoRoute or
// TooBig.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return "osrm: " + e.Code
	}
	return fmt.Sprintf("osrm: %s: %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP answer that carried no OSRM code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("osrm: upstream status %d: %s", e.StatusCode, e.Body)
}
