package problems

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diwise/entity-binder/internal/pkg/application/binder"
	binderrors "github.com/diwise/entity-binder/pkg/binding/errors"
)

// ProblemDetails stores details about a certain problem according to RFC7807
// See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	Type() string
	Title() string
	Detail() string
	ResponseCode() int
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

// ProblemDetailsImpl is an implementation of the ProblemDetails interface
type ProblemDetailsImpl struct {
	typ    string
	title  string
	detail string
	code   int
}

const (
	//ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"

	typePrefix string = "urn:diwise:entity-binder:errors:"
)

func newProblem(typ, title, detail string, code int) *ProblemDetailsImpl {
	return &ProblemDetailsImpl{
		typ:    typePrefix + typ,
		title:  title,
		detail: detail,
		code:   code,
	}
}

// NewBadRequestData reports input values that could not be bound to an entity
func NewBadRequestData(detail string) *ProblemDetailsImpl {
	return newProblem("BadRequestData", "Bad Request Data", detail, http.StatusBadRequest)
}

// NewInvalidRequest reports a request that is syntactically invalid
func NewInvalidRequest(detail string) *ProblemDetailsImpl {
	return newProblem("InvalidRequest", "Invalid Request", detail, http.StatusBadRequest)
}

func NewNotFound(detail string) *ProblemDetailsImpl {
	return newProblem("ResourceNotFound", "Not Found", detail, http.StatusNotFound)
}

func NewUnauthorizedRequest(detail string) *ProblemDetailsImpl {
	return newProblem("UnauthorizedRequest", "Unauthorized Request", detail, http.StatusUnauthorized)
}

func NewInternalError(detail string) *ProblemDetailsImpl {
	return newProblem("InternalError", "Internal Error", detail, http.StatusInternalServerError)
}

// ReportNewInvalidRequest creates an InvalidRequest problem and sends it to the supplied http.ResponseWriter
func ReportNewInvalidRequest(w http.ResponseWriter, detail string) {
	NewInvalidRequest(detail).WriteResponse(w)
}

func ReportUnauthorizedRequest(w http.ResponseWriter, detail string) {
	NewUnauthorizedRequest(detail).WriteResponse(w)
}

// ReportError translates an error from the binder into a problem report. Unknown
// mappers and missing records are reported as not found, failed conversions and
// reference resolutions as bad request data.
func ReportError(w http.ResponseWriter, err error) {
	FromError(err).WriteResponse(w)
}

func FromError(err error) ProblemDetails {
	switch {
	case errors.Is(err, binderrors.ErrReferenceResolution):
		return NewBadRequestData(err.Error())
	case errors.Is(err, binderrors.ErrConversion):
		return NewBadRequestData(err.Error())
	case errors.Is(err, binderrors.ErrNotFound), errors.Is(err, binder.ErrUnknownMapper):
		return NewNotFound(err.Error())
	default:
		return NewInternalError(err.Error())
	}
}

func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

func (p *ProblemDetailsImpl) Type() string {
	return p.typ
}

func (p *ProblemDetailsImpl) Title() string {
	return p.title
}

func (p *ProblemDetailsImpl) Detail() string {
	return p.detail
}

// MarshalJSON is called when a ProblemDetailsImpl instance should be serialized to JSON
func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status int    `json:"status"`
	}{
		Type:   p.typ,
		Title:  p.title,
		Detail: p.detail,
		Status: p.ResponseCode(),
	})
}

// ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {
	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

// WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
