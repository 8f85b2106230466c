package client

import (
	"net/http"
	"strings"
)

// Method is one of the HTTP verbs a request can be sent with.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

// ParseMethod matches name case-insensitively against the supported verbs.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "get":
		return MethodGet, nil
	case "post":
		return MethodPost, nil
	case "put":
		return MethodPut, nil
	case "delete":
		return MethodDelete, nil
	}

	return "", newError(ErrUnsupportedVerb, "%q", name)
}

func (m Method) String() string {
	return string(m)
}
