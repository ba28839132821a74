// Package content decodes request bodies by media type.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MediaTypeJSON = "application/json"
	MediaTypeYAML = "application/yaml"
	MediaTypeForm = "application/x-www-form-urlencoded"
)

// ErrUnsupportedMediaType is returned when no decoder matches the content type.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Decoder decodes a body into dst.
type Decoder interface {
	Decode(r io.Reader, dst any) error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader, dst any) error

// Decode implements Decoder.
func (fn DecoderFunc) Decode(r io.Reader, dst any) error {
	return fn(r, dst)
}

// Registry maps media types to decoders.
type Registry struct {
	decoders map[string]Decoder
	fallback string
}

// NewRegistry returns a registry with JSON, YAML and form decoders. Bodies
// without a content type are decoded as JSON.
func NewRegistry() *Registry {
	registry := &Registry{decoders: map[string]Decoder{}, fallback: MediaTypeJSON}
	registry.Register(MediaTypeJSON, JSON{})
	registry.Register(MediaTypeYAML, YAML{})
	registry.Register("application/x-yaml", YAML{})
	registry.Register("text/yaml", YAML{})
	registry.Register(MediaTypeForm, Form{})
	return registry
}

// Register sets the decoder for a media type.
func (r *Registry) Register(mediaType string, decoder Decoder) {
	r.decoders[strings.ToLower(mediaType)] = decoder
}

// Lookup finds the decoder for a Content-Type header value.
func (r *Registry) Lookup(contentType string) (Decoder, error) {
	mediaType := r.fallback
	if strings.TrimSpace(contentType) != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
		}
		mediaType = parsed
	}
	decoder, ok := r.decoders[strings.ToLower(mediaType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	return decoder, nil
}

// Decode decodes body according to contentType.
func (r *Registry) Decode(contentType string, body io.Reader, dst any) error {
	decoder, err := r.Lookup(contentType)
	if err != nil {
		return err
	}
	return decoder.Decode(body, dst)
}

// JSON decodes a single JSON value. Strict rejects unknown fields.
type JSON struct {
	Strict bool
}

// Decode implements Decoder.
func (d JSON) Decode(r io.Reader, dst any) error {
	decoder := json.NewDecoder(r)
	if d.Strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// YAML decodes a YAML document.
type YAML struct {
	Strict bool
}

// Decode implements Decoder.
func (d YAML) Decode(r io.Reader, dst any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(d.Strict)
	return decoder.Decode(dst)
}
