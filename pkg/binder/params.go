package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Query binds URL query parameters using `query` tags.
//
//	type listRequest struct {
//		Statuses []string `query:"status"` // ?status=active&status=past_due or ?status=active,past_due
//		Limit    *int     `query:"limit"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}

// Path binds router path parameters using `path` tags. The extractor is
// usually chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrFailedToParsePath)
		}
		values := make(map[string][]string)
		for _, name := range tagNames(v, "path") {
			if value := extractor(r, name); value != "" {
				values[name] = []string{value}
			}
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}

// Header binds request headers using `header` tags. Names are matched in
// canonical form, so `header:"X-Tenant-ID"` reads X-Tenant-Id as well.
func Header() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := make(map[string][]string)
		for _, name := range tagNames(v, "header") {
			if hv := r.Header.Values(name); len(hv) > 0 {
				values[name] = hv
			}
		}
		return bindToStruct(v, "header", values, ErrFailedToParseHeader)
	}
}

// tagNames lists the parameter names declared with tagName on v's fields.
// Fields without the tag are ignored.
func tagNames(v any, tagName string) []string {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := range rt.NumField() {
		f := rt.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get(tagName) == "" {
			names = append(names, tagNames(reflect.New(f.Type).Interface(), tagName)...)
			continue
		}
		if f.Tag.Get(tagName) == "" {
			continue
		}
		if name, skip := parseFieldTag(f, tagName); !skip {
			names = append(names, name)
		}
	}
	return names
}
