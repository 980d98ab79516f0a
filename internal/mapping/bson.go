package mapping

import (
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// asEntries views a value as an ordered document. Unordered map forms
// are sorted by key so mapping output stays deterministic.
func asEntries(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		return sortedEntries(d), true
	case map[string]any:
		return sortedEntries(d), true
	}
	return nil, false
}

func sortedEntries(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(m))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}

func isDocumentValue(v any) bool {
	switch v.(type) {
	case bson.D, bson.M, map[string]any:
		return true
	}
	return false
}

func docGet(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func docContains(d bson.D, key string) bool {
	_, ok := docGet(d, key)
	return ok
}

// docSet replaces the entry for key, appending when absent.
func docSet(d bson.D, key string, value any) bson.D {
	for i, e := range d {
		if e.Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: value})
}

// asIterable views a value as a generic element sequence. Byte slices
// and document forms are not iterables.
func asIterable(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case bson.A:
		return s, true
	case []any:
		return s, true
	case []byte, string:
		return nil, false
	}
	if isDocumentValue(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isOperatorKey(key string) bool {
	return len(key) > 0 && key[0] == '$'
}
