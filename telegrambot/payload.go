package telegrambot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"reflect"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Payload is an encoded request body. Boundary is empty for JSON bodies.
type Payload struct {
	Body     []byte
	Boundary string
}

// IsMultipart reports whether the body is multipart/form-data.
func (p Payload) IsMultipart() bool {
	return p.Boundary != ""
}

// upload is one binary part of a multipart body.
type upload struct {
	marker string
	file   *InputFile
}

// NewPayload validates req and encodes it. Requests without uploads are sent
// as JSON, anything carrying an upload becomes multipart/form-data.
// A nil req, or a nil pointer, encodes as an empty JSON object.
func NewPayload(method string, req any) (Payload, error) {
	if isNil(req) {
		return Payload{Body: []byte("{}")}, nil
	}

	if isStruct(req) {
		if err := validateStruct(req); err != nil {
			return Payload{}, &ValidationError{Method: method, Err: err}
		}
	}

	uploads := assignMarkers(req)

	doc, err := json.Marshal(req)
	if err != nil {
		return Payload{}, fmt.Errorf("telegram %s: marshal request: %w", method, err)
	}
	if len(uploads) == 0 {
		return Payload{Body: doc}, nil
	}

	for _, u := range uploads {
		if !bytes.Contains(doc, []byte(strconv.Quote(attachPrefix+u.marker))) {
			return Payload{}, fmt.Errorf("telegram %s: upload %q is not referenced by any field", method, u.marker)
		}
	}
	return encodeMultipart(method, doc, uploads)
}

// assignMarkers gives every upload of an Uploader a unique marker derived
// from its field name.
func assignMarkers(req any) []upload {
	u, ok := req.(Uploader)
	if !ok {
		return nil
	}

	var uploads []upload
	taken := make(map[string]bool)
	for _, a := range u.Files() {
		if !a.File.IsUpload() {
			continue
		}
		marker := a.Field
		for i := 1; taken[marker]; i++ {
			marker = a.Field + strconv.Itoa(i)
		}
		taken[marker] = true
		a.File.attach = marker
		uploads = append(uploads, upload{marker: marker, file: a.File})
	}
	return uploads
}

// encodeMultipart splits the JSON view of a request into text parts and adds
// one binary part per upload. A top-level upload field keeps its
// attach://<marker> text part next to the binary part of the same name.
func encodeMultipart(method string, doc []byte, uploads []upload) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return Payload{}, fmt.Errorf("telegram %s: multipart requests must encode to a JSON object: %w", method, err)
	}

	markers := make(map[string]bool, len(uploads))
	for _, u := range uploads {
		markers[u.marker] = true
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	boundary := "tbot-" + uuid.NewString()
	if err := w.SetBoundary(boundary); err != nil {
		return Payload{}, fmt.Errorf("telegram %s: set boundary: %w", method, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		raw := fields[key]
		if string(raw) == "null" {
			continue
		}

		value := string(raw)
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			value = s
		}
		if markers[key] && value != attachPrefix+key {
			return Payload{}, fmt.Errorf("telegram %s: attach marker %q collides with a field", method, key)
		}
		if err := w.WriteField(key, value); err != nil {
			return Payload{}, fmt.Errorf("telegram %s: write field %s: %w", method, key, err)
		}
	}

	for _, u := range uploads {
		name := u.file.name
		if name == "" {
			name = u.marker
		}
		part, err := w.CreateFormFile(u.marker, name)
		if err != nil {
			return Payload{}, fmt.Errorf("telegram %s: create part %s: %w", method, u.marker, err)
		}
		if _, err := part.Write(u.file.data); err != nil {
			return Payload{}, fmt.Errorf("telegram %s: write part %s: %w", method, u.marker, err)
		}
	}

	if err := w.Close(); err != nil {
		return Payload{}, fmt.Errorf("telegram %s: close multipart writer: %w", method, err)
	}
	return Payload{Body: buf.Bytes(), Boundary: boundary}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
