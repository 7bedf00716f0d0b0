// validator.go
// ------------
// The ResponseValidator classifies an HTTP response into success or one typed
// error. 400 bodies are probed for the structured {code,message} payload APIs
// return; the probe is best effort and an unparseable body still yields a
// BadRequest error, just without the decoded payload.
package httpbridge

import jsoniter "github.com/json-iterator/go"

// ResponseValidator maps status codes to typed outcomes.
type ResponseValidator struct{}

// NewResponseValidator returns the default validator.
func NewResponseValidator() *ResponseValidator { return &ResponseValidator{} }

// Validate returns nil for 2xx responses and a taxonomy error otherwise.
func (v *ResponseValidator) Validate(resp *Response) error {
	if resp == nil {
		return newError(ErrInvalidResponse)
	}

	status := resp.StatusCode
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == 400:
		e := statusError(ErrBadRequest, status)
		var api APIError
		if err := jsoniter.Unmarshal(resp.Body, &api); err == nil && (api.Code != "" || api.Message != "") {
			e.API = &api
		}
		return e
	case status == 401:
		return statusError(ErrUnauthorized, status)
	case status == 403:
		return statusError(ErrForbidden, status)
	case status == 404:
		return statusError(ErrNotFound, status)
	case status >= 500 && status <= 599:
		return statusError(ErrServer, status)
	default:
		return statusError(ErrUnexpectedStatus, status)
	}
}
