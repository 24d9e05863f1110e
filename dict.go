// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

// Dict is an insertion ordered string map.  Re-setting a key replaces its
// value but keeps the key in its original position.
type Dict struct {
	keys   []string
	values map[string]string
}

// NewDict returns a Dict populated from alternating key, value pairs.
func NewDict(kv ...string) Dict {
	var d Dict
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i], kv[i+1])
	}
	return d
}

func (d *Dict) Set(key, value string) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d Dict) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// GetOrUnknown returns the value for key, or Unknown if it isn't set.
func (d Dict) GetOrUnknown(key string) string {
	if v, ok := d.values[key]; ok {
		return v
	}
	return Unknown
}

// Keys returns the keys in insertion order.
func (d Dict) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d Dict) Len() int { return len(d.keys) }

// Equal reports whether both dicts hold the same entries in the same order.
func (d Dict) Equal(o Dict) bool {
	if len(d.keys) != len(o.keys) {
		return false
	}
	for i, k := range d.keys {
		if o.keys[i] != k || o.values[k] != d.values[k] {
			return false
		}
	}
	return true
}

// Map returns an unordered copy of the entries.
func (d Dict) Map() map[string]string {
	m := make(map[string]string, len(d.keys))
	for k, v := range d.values {
		m[k] = v
	}
	return m
}
