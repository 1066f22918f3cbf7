package expr

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Scope resolves identifiers. Unknown names evaluate to null.
type Scope interface {
	Lookup(name string) (any, bool)
}

// Vars is a Scope over a plain map with exact-name lookup.
type Vars map[string]any

func (v Vars) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Items is a case-insensitive view of every value of every record item.
// Member access on it yields the full value list of an item.
type Items map[string][]any

// Eval evaluates n in scope.
func Eval(n Node, scope Scope) (any, error) {
	if scope == nil {
		scope = Vars(nil)
	}
	return eval(n, scope)
}

func eval(n Node, scope Scope) (any, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *Ident:
		v, ok := scope.Lookup(n.Name)
		if !ok {
			return nil, nil
		}
		return v, nil
	case *Member:
		obj, err := eval(n.Object, scope)
		if err != nil {
			return nil, err
		}
		return member(obj, n.Property), nil
	case *Index:
		obj, err := eval(n.Object, scope)
		if err != nil {
			return nil, err
		}
		idx, err := eval(n.Index, scope)
		if err != nil {
			return nil, err
		}
		return index(obj, idx)
	case *List:
		out := make([]any, len(n.Elements))
		for i, el := range n.Elements {
			v, err := eval(el, scope)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Unary:
		v, err := eval(n.Operand, scope)
		if err != nil {
			return nil, err
		}
		if n.Op != TokenNot {
			return nil, fmt.Errorf("unsupported unary operator %s", n.Op)
		}
		return !IsTruthy(v), nil
	case *Binary:
		return evalBinary(n, scope)
	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
}

func evalBinary(n *Binary, scope Scope) (any, error) {
	left, err := eval(n.Left, scope)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case TokenAnd:
		if !IsTruthy(left) {
			return false, nil
		}
		right, err := eval(n.Right, scope)
		return IsTruthy(right), err
	case TokenOr:
		if IsTruthy(left) {
			return true, nil
		}
		right, err := eval(n.Right, scope)
		return IsTruthy(right), err
	case TokenCoalesce:
		if left != nil {
			return left, nil
		}
		return eval(n.Right, scope)
	}

	right, err := eval(n.Right, scope)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case TokenEq:
		return Equal(left, right), nil
	case TokenNeq:
		return !Equal(left, right), nil
	case TokenGt, TokenGte, TokenLt, TokenLte:
		cmp, ok := compare(left, right)
		if !ok {
			return false, nil
		}
		switch n.Op {
		case TokenGt:
			return cmp > 0, nil
		case TokenGte:
			return cmp >= 0, nil
		case TokenLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case TokenIn:
		return contains(right, left), nil
	case TokenContains:
		return contains(left, right), nil
	case TokenStartsWith:
		ls, rs, ok := bothStrings(left, right)
		return ok && strings.HasPrefix(ls, rs), nil
	case TokenEndsWith:
		ls, rs, ok := bothStrings(left, right)
		return ok && strings.HasSuffix(ls, rs), nil
	case TokenMatches:
		return matches(left, right)
	default:
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
}

// IsTruthy reports the boolean meaning of v. null, false, 0, "" and empty
// collections are false.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case time.Time:
		return !val.IsZero()
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

// Equal compares with numeric normalization. A number equals a string that
// parses to the same number.
func Equal(a, b any) bool {
	if as, bs, ok := bothStrings(a, b); ok {
		return as == bs
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	af, aok := coerceNumber(a)
	bf, bok := coerceNumber(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values. Strings compare lexically unless the other side
// is a number; times compare chronologically.
func compare(a, b any) (int, bool) {
	if as, bs, ok := bothStrings(a, b); ok {
		return strings.Compare(as, bs), true
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), true
		}
	}
	af, aok := coerceNumber(a)
	bf, bok := coerceNumber(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func coerceNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return number(v)
}

func bothStrings(a, b any) (string, string, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	return as, bs, aok && bok
}

func member(obj any, prop string) any {
	switch v := obj.(type) {
	case nil:
		return nil
	case Items:
		values, ok := v[strings.ToLower(prop)]
		if !ok {
			return nil
		}
		return values
	case map[string]any:
		return v[prop]
	}
	if prop == "length" {
		return length(obj)
	}
	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		if val := rv.MapIndex(reflect.ValueOf(prop).Convert(rv.Type().Key())); val.IsValid() {
			return val.Interface()
		}
	}
	return nil
}

func length(obj any) any {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len())
	}
	return nil
}

func index(obj, idx any) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if key, ok := idx.(string); ok {
		return member(obj, key), nil
	}
	f, ok := number(idx)
	if !ok {
		return nil, fmt.Errorf("invalid index type %T", idx)
	}
	i := int(f)
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, nil
	}
	if i < 0 || i >= rv.Len() {
		return nil, nil
	}
	return rv.Index(i).Interface(), nil
}

// contains reports whether haystack holds needle: substring for strings,
// element for lists.
func contains(haystack, needle any) bool {
	if hs, ns, ok := bothStrings(haystack, needle); ok {
		return strings.Contains(hs, ns)
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if Equal(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

// patternCacheSize bounds the compiled regexps kept for matches. Patterns
// built from record data would otherwise grow the cache without limit.
const patternCacheSize = 256

var patterns, _ = lru.New[string, *regexp.Regexp](patternCacheSize)

func matches(left, right any) (bool, error) {
	s, pattern, ok := bothStrings(left, right)
	if !ok {
		return false, nil
	}
	if cached, ok := patterns.Get(pattern); ok {
		return cached.MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patterns.Add(pattern, re)
	return re.MatchString(s), nil
}
