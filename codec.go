// codec.go
// --------
// Wire payloads use snake_case keys while Go structs use exported CamelCase
// fields. The codec is a jsoniter API with a naming extension translating
// untagged fields, plus a time.Time decoder accepting the ISO-8601 shapes
// APIs actually emit. Explicit json tags always win over the translation.
package httpbridge

import (
	"reflect"
	"time"
	"unicode"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"

	"github.com/clearroute/httpbridge/internal/timeutil"
)

var codec = newCodec()

func newCodec() jsoniter.API {
	api := jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	api.RegisterExtension(&snakeCaseExtension{})
	api.RegisterExtension(&isoTimeExtension{})
	return api
}

type snakeCaseExtension struct {
	jsoniter.DummyExtension
}

func (e *snakeCaseExtension) UpdateStructDescriptor(desc *jsoniter.StructDescriptor) {
	for _, binding := range desc.Fields {
		name := binding.Field.Name()
		if len(name) == 0 || unicode.IsLower(rune(name[0])) || name[0] == '_' {
			continue
		}
		if _, tagged := binding.Field.Tag().Lookup("json"); tagged {
			continue
		}
		snake := toSnakeCase(name)
		binding.FromNames = []string{snake}
		binding.ToNames = []string{snake}
	}
}

// toSnakeCase turns CamelCase into snake_case, keeping initialisms readable:
// "UserID" -> "user_id", "HTTPStatus" -> "http_status".
func toSnakeCase(name string) string {
	runes := []rune(name)
	out := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				out = append(out, '_')
			}
			out = append(out, unicode.ToLower(r))
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

type isoTimeExtension struct {
	jsoniter.DummyExtension
}

var timeType = reflect.TypeOf(time.Time{})

func (e *isoTimeExtension) CreateDecoder(typ reflect2.Type) jsoniter.ValDecoder {
	if typ.Type1() == timeType {
		return &isoTimeDecoder{}
	}
	return nil
}

type isoTimeDecoder struct{}

func (d *isoTimeDecoder) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.ReadNil()
		*(*time.Time)(ptr) = time.Time{}
		return
	}
	raw := iter.ReadString()
	if raw == "" {
		*(*time.Time)(ptr) = time.Time{}
		return
	}
	parsed, err := timeutil.ParseISO8601(raw)
	if err != nil {
		iter.ReportError("iso8601", err.Error())
		return
	}
	*(*time.Time)(ptr) = parsed
}

// encodeBody serializes a request body into its wire form.
func encodeBody(body *Body) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := body.MarshalJSON()
	if err != nil {
		return nil, wrapError(ErrEncoding, err)
	}
	return data, nil
}

// decodeInto parses a response body into out using the pipeline codec.
func decodeInto(data []byte, out any) error {
	if len(data) == 0 {
		return newError(ErrNoData)
	}
	if err := codec.Unmarshal(data, out); err != nil {
		return wrapError(ErrDecoding, err)
	}
	return nil
}
