package content

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// maxFormBytes bounds url-encoded bodies read by Form.
const maxFormBytes = 10 << 20

// Form decodes url-encoded bodies into a struct pointer. Fields are matched
// by their `form` tag, falling back to the lowercased field name.
type Form struct{}

// Decode implements Decoder.
func (Form) Decode(r io.Reader, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r, maxFormBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxFormBytes {
		return errors.New("form body too large")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return err
	}
	return bindValues(values, dst)
}

func bindValues(values url.Values, dst any) error {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() || target.Elem().Kind() != reflect.Struct {
		return errors.New("form destination must be a non-nil struct pointer")
	}
	target = target.Elem()
	targetType := target.Type()

	for i := 0; i < targetType.NumField(); i++ {
		field := targetType.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("form")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		raw, ok := values[name]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := setField(target.Field(i), raw); err != nil {
			return fmt.Errorf("form field %s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw []string) error {
	value := raw[0]
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(parsed)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(append([]string(nil), raw...)))
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}
