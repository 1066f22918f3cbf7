package workflow

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Reserved item names read and written by the kernel.
const (
	ItemProcessID    = "$processid"
	ItemActivityID   = "$activityid"
	ItemModelVersion = "$modelversion"
)

// Record is an ordered, multi-valued key/value document. Item names are
// case-insensitive and kept in insertion order. A Record is not safe for
// concurrent mutation.
type Record struct {
	names []string
	items map[string][]any
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{items: make(map[string][]any)}
}

// NewRecordFrom creates a record from a plain map. Keys are added in sorted
// order so the result is deterministic.
func NewRecordFrom(values map[string]any) *Record {
	rec := NewRecord()
	for _, name := range sortedKeys(values) {
		rec.ReplaceItemValue(name, values[name])
	}
	return rec
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ReplaceItemValue sets the values of an item, replacing any existing ones.
// Slices (other than []byte) are stored as multiple values.
func (r *Record) ReplaceItemValue(name string, value any) *Record {
	key := normalizeName(name)
	if key == "" {
		return r
	}
	if r.items == nil {
		r.items = make(map[string][]any)
	}
	if _, exists := r.items[key]; !exists {
		r.names = append(r.names, key)
	}
	r.items[key] = toValues(value)
	return r
}

// AppendItemValue adds values to the end of an item, creating it if needed.
func (r *Record) AppendItemValue(name string, value any) *Record {
	key := normalizeName(name)
	if key == "" {
		return r
	}
	current, exists := r.items[key]
	if !exists {
		return r.ReplaceItemValue(key, value)
	}
	r.items[key] = append(current, toValues(value)...)
	return r
}

// RemoveItem deletes an item. It reports whether the item existed.
func (r *Record) RemoveItem(name string) bool {
	key := normalizeName(name)
	if _, exists := r.items[key]; !exists {
		return false
	}
	delete(r.items, key)
	for i, n := range r.names {
		if n == key {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return true
}

// HasItem reports whether the item exists.
func (r *Record) HasItem(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.items[normalizeName(name)]
	return ok
}

// ItemNames returns the item names in insertion order.
func (r *Record) ItemNames() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of items.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// ItemValue returns a copy of all values stored under name.
func (r *Record) ItemValue(name string) []any {
	if r == nil {
		return nil
	}
	values, ok := r.items[normalizeName(name)]
	if !ok {
		return nil
	}
	out := make([]any, len(values))
	copy(out, values)
	return out
}

// FirstValue returns the first value of an item.
func (r *Record) FirstValue(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	values := r.items[normalizeName(name)]
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// ItemValueString returns the first value rendered as a string, or "".
func (r *Record) ItemValueString(name string) string {
	v, ok := r.FirstValue(name)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// ItemValueInteger returns the first value as an int. Floats and numeric
// strings count only when they hold a whole number in int range; fractional
// or out-of-range values yield 0, as does anything else.
func (r *Record) ItemValueInteger(name string) int {
	v, ok := r.FirstValue(name)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return wholeInt(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return wholeInt(f)
		}
	}
	return 0
}

func wholeInt(f float64) int {
	if f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0
	}
	return int(f)
}

// ItemValueFloat returns the first value as a float64, or 0.
func (r *Record) ItemValueFloat(name string) float64 {
	v, ok := r.FirstValue(name)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case int:
		return float64(val)
	case float64:
		return val
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return 0
}

// ItemValueBool returns the first value as a bool.
func (r *Record) ItemValueBool(name string) bool {
	v, ok := r.FirstValue(name)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(val))
		return b
	case int:
		return val != 0
	}
	return false
}

// ItemValueTime returns the first value as a time. RFC3339 strings are parsed.
func (r *Record) ItemValueTime(name string) (time.Time, bool) {
	v, ok := r.FirstValue(name)
	if !ok {
		return time.Time{}, false
	}
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(val))
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ProcessID returns the current process state id.
func (r *Record) ProcessID() int { return r.ItemValueInteger(ItemProcessID) }

// ActivityID returns the requested activity id.
func (r *Record) ActivityID() int { return r.ItemValueInteger(ItemActivityID) }

// ModelVersion returns the model version the record is bound to.
func (r *Record) ModelVersion() string { return r.ItemValueString(ItemModelVersion) }

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		names: make([]string, len(r.names)),
		items: make(map[string][]any, len(r.items)),
	}
	copy(out.names, r.names)
	for k, values := range r.items {
		cp := make([]any, len(values))
		for i, v := range values {
			cp[i] = copyValue(v)
		}
		out.items[k] = cp
	}
	return out
}

// Map returns a first-value view of the record.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	if r == nil {
		return out
	}
	for _, name := range r.names {
		values := r.items[name]
		if len(values) == 0 {
			out[name] = nil
			continue
		}
		out[name] = copyValue(values[0])
	}
	return out
}

// Items returns all values keyed by item name.
func (r *Record) Items() map[string][]any {
	out := make(map[string][]any, r.Len())
	if r == nil {
		return out
	}
	for _, name := range r.names {
		out[name] = r.ItemValue(name)
	}
	return out
}

// Decode copies first values into out (a pointer to a struct or map) using
// `item` struct tags. Field names match case-insensitively.
func (r *Record) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "item",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(r.Map())
}

// Equal reports whether both records hold the same items and values.
// Item order is ignored.
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for _, name := range r.ItemNames() {
		if !other.HasItem(name) {
			return false
		}
		if !reflect.DeepEqual(r.items[name], other.items[name]) {
			return false
		}
	}
	return true
}

func toValues(value any) []any {
	if value == nil {
		return []any{}
	}
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case []byte:
		return []any{string(v)}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return []any{normalizeValue(value)}
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		if uint64(v) > math.MaxInt {
			return uint64(v)
		}
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		// Values above MaxInt stay uint64 rather than wrapping negative.
		if v > math.MaxInt {
			return v
		}
		return int(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
