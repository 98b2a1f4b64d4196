package agent

import (
	"github.com/hugr-lab/manageql/mgmt"
)

// Error codes carried by ErrorResponse.
const (
	CodeNotFound      = "not_found"
	CodeMalformedName = "malformed_name"
	CodeBadRequest    = "bad_request"
	CodeUnauthorized  = "unauthorized"
	CodeInternal      = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NamesResponse answers PathNames.
type NamesResponse struct {
	Names []string `json:"names"`
}

// DescribeResponse answers PathDescribe.
type DescribeResponse struct {
	Name       string               `json:"name"`
	Attributes []mgmt.AttributeInfo `json:"attributes"`
}

// ReadRequest is the body of PathRead.
type ReadRequest struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

// WireAttribute is one attribute value in a ReadResponse.
type WireAttribute struct {
	Name  string          `json:"name"`
	Value *mgmt.WireValue `json:"value"`
}

// ReadResponse answers PathRead.
type ReadResponse struct {
	Name       string          `json:"name"`
	Attributes []WireAttribute `json:"attributes"`
}
