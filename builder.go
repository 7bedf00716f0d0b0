// builder.go
// ----------
// The RequestBuilder turns an abstract Endpoint into a concrete Request:
// joining the base URL, path and query parameters, serializing the body, and
// carrying method, headers, timeout and cache policy over verbatim. Build
// failures are deterministic caller errors and are never retried.
package httpbridge

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = "X-Request-ID"

// RequestBuilder builds concrete requests from endpoint descriptors.
type RequestBuilder struct {
	logger             zerolog.Logger
	maxPayloadLogBytes int
}

// NewRequestBuilder returns a builder logging through the given logger.
func NewRequestBuilder(logger zerolog.Logger, maxPayloadLogBytes int) *RequestBuilder {
	if maxPayloadLogBytes <= 0 {
		maxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}
	return &RequestBuilder{logger: logger, maxPayloadLogBytes: maxPayloadLogBytes}
}

// Build constructs the request for one endpoint. It fails with an InvalidURL
// error when the base URL is missing or the combined URL is not valid, and
// with an EncodingError when the body cannot be serialized.
func (b *RequestBuilder) Build(endpoint Endpoint) (*Request, error) {
	if strings.TrimSpace(endpoint.BaseURL) == "" {
		return nil, detailError(ErrInvalidURL, "endpoint %q has no base URL", endpoint.Path)
	}

	base, err := url.Parse(endpoint.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, detailError(ErrInvalidURL, "base URL %q is not a valid absolute URL", endpoint.BaseURL)
	}

	ref, err := url.Parse(endpoint.Path)
	if err != nil {
		return nil, detailError(ErrInvalidURL, "path %q is not a valid URL reference", endpoint.Path)
	}
	full := base.ResolveReference(ref)
	if full.Scheme == "" || full.Host == "" {
		return nil, detailError(ErrInvalidURL, "combining %q and %q yields no absolute URL", endpoint.BaseURL, endpoint.Path)
	}

	if len(endpoint.QueryParams) > 0 {
		// Encode pairs by hand; url.Values.Encode sorts keys and would lose
		// the declared parameter order.
		var query strings.Builder
		query.WriteString(full.RawQuery)
		for _, p := range endpoint.QueryParams {
			if query.Len() > 0 {
				query.WriteByte('&')
			}
			query.WriteString(url.QueryEscape(p.Key))
			query.WriteByte('=')
			query.WriteString(url.QueryEscape(p.Value))
		}
		full.RawQuery = query.String()
	}

	payload, err := encodeBody(endpoint.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(endpoint.Headers)+1)
	for k, v := range endpoint.Headers {
		headers[k] = v
	}
	if _, ok := headers[HeaderRequestID]; !ok {
		headers[HeaderRequestID] = uuid.NewString()
	}

	method := endpoint.Method
	if method == "" {
		method = GET
	}

	req := &Request{
		Method:      method,
		URL:         full.String(),
		Headers:     headers,
		Body:        payload,
		Timeout:     endpoint.timeout(),
		CachePolicy: endpoint.CachePolicy,
	}

	if !endpoint.LoggingDisabled {
		b.logRequest(req)
	}
	return req, nil
}

// logRequest emits the built request at debug level. Logging is best effort
// and never fails the build.
func (b *RequestBuilder) logRequest(req *Request) {
	ev := b.logger.Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.Str("method", string(req.Method)).
		Str("url", req.URL).
		Str("request_id", req.Headers[HeaderRequestID]).
		Dur("timeout", req.Timeout)
	if len(req.Body) > 0 {
		ev = ev.Str("body", prettyPayload(req.Body, b.maxPayloadLogBytes))
	}
	ev.Msg("request built")
}

// prettyPayload re-indents a JSON payload for logging, truncating at max
// bytes. Non-JSON payloads are logged as-is.
func prettyPayload(data []byte, max int) string {
	var parsed any
	if err := jsoniter.Unmarshal(data, &parsed); err == nil {
		if pretty, err := jsoniter.MarshalIndent(parsed, "", "  "); err == nil {
			data = pretty
		}
	}
	if len(data) > max {
		return string(data[:max]) + "...(truncated)"
	}
	return string(data)
}
