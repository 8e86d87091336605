package client

import (
	"net/url"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters. Unlike url.Values it keeps
// insertion order across keys and allows the same key to appear several
// times with different values.
type Params []Param

// Add appends a key/value pair.
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// AddIf appends the pair only when value is non-empty.
func (p *Params) AddIf(key, value string) {
	if value != "" {
		p.Add(key, value)
	}
}

// Set replaces every occurrence of key with a single pair.
func (p *Params) Set(key, value string) {
	out := (*p)[:0:0]
	for _, kv := range *p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	*p = append(out, Param{Key: key, Value: value})
}

// Get returns the first value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Values returns every value for key in insertion order.
func (p Params) Values(key string) []string {
	var vals []string
	for _, kv := range p {
		if kv.Key == key {
			vals = append(vals, kv.Value)
		}
	}
	return vals
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// With returns a copy of p with one more pair appended. p is not modified.
func (p Params) With(key, value string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	return append(out, Param{Key: key, Value: value})
}

// Encode renders the list as a query string in insertion order.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}
