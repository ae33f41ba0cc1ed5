package intake

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var ErrNoAction = errors.New("form has no action url")

type Field struct {
	Name  string
	Value string
}

// Form is an ordered set of named entries posted to a single action URL.
type Form struct {
	Name   string
	Action string
	Fields []Field
}

func (f Form) Values() url.Values {
	values := make(url.Values, len(f.Fields))
	for _, field := range f.Fields {
		values.Add(field.Name, field.Value)
	}
	return values
}

// Encode renders the fields as application/x-www-form-urlencoded, keeping
// field order.
func (f Form) Encode() string {
	var b strings.Builder
	for i, field := range f.Fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(field.Value))
	}
	return b.String()
}

func (f Form) Map() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Name] = field.Value
	}
	return out
}

type Sink interface {
	Submit(ctx context.Context, form Form) error
}

type SinkFunc func(ctx context.Context, form Form) error

func (fn SinkFunc) Submit(ctx context.Context, form Form) error {
	return fn(ctx, form)
}
