package expr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	workflow "github.com/shiningyao/imixs-workflow"
)

func evalString(t *testing.T, src string, vars Vars) any {
	t.Helper()
	n, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) unexpected error: %v", src, err)
	}
	v, err := Eval(n, vars)
	if err != nil {
		t.Fatalf("Eval(%q) unexpected error: %v", src, err)
	}
	return v
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize(`$processid >= -10 && name != 'it\'s' ?? [1.5]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{
		TokenIdent, TokenGte, TokenNumber, TokenAnd, TokenIdent, TokenNeq, TokenString,
		TokenCoalesce, TokenLBracket, TokenNumber, TokenRBracket, TokenEOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, kind := range want {
		if tokens[i].Kind != kind {
			t.Fatalf("token %d: got %s, want %s", i, tokens[i].Kind, kind)
		}
	}
	if tokens[0].Value != "$processid" {
		t.Fatalf("got ident %q", tokens[0].Value)
	}
	if tokens[2].Value != "-10" {
		t.Fatalf("got number %q", tokens[2].Value)
	}
	if tokens[6].Value != "it's" {
		t.Fatalf("got string %q", tokens[6].Value)
	}
}

func TestTokenizeErrors(t *testing.T) {
	cases := []string{`a == "open`, `a # b`, `'x`}
	for _, src := range cases {
		_, err := Tokenize(src)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("Tokenize(%q): expected SyntaxError, got %v", src, err)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	cases := map[string]string{
		`a || b && c`:          `(a || (b && c))`,
		`a ?? b || c`:          `(a ?? (b || c))`,
		`a == b > c`:           `(a == (b > c))`,
		`!a && b`:              `((!a) && b)`,
		`x.y[0] in [1, 2]`:     `(x.y[0] in [1, 2])`,
		`(a || b) && c`:        `((a || b) && c)`,
		`item.contains == "x"`: `(item.contains == "x")`,
	}
	for src, want := range cases {
		n, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", src, err)
		}
		if got := n.String(); got != want {
			t.Fatalf("Parse(%q) = %s, want %s", src, got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{``, `a ==`, `(a`, `[1, 2`, `a b`, `a.`, `&& b`}
	for _, src := range cases {
		if _, err := Parse(src); err == nil {
			t.Fatalf("Parse(%q): expected error", src)
		}
	}
}

func TestEvalOperators(t *testing.T) {
	vars := Vars{
		"budget": 99,
		"status": "open",
		"team":   []any{"anna", "tom"},
		"rate":   0.5,
		"none":   nil,
		"flag":   true,
		"amount": "150",
	}
	cases := []struct {
		src  string
		want bool
	}{
		{`budget > 100`, false},
		{`budget <= 99`, true},
		{`budget == 99.0`, true},
		{`amount > 100`, true},
		{`amount == 150`, true},
		{`status == 'open'`, true},
		{`status != "open"`, false},
		{`status startsWith "op"`, true},
		{`status endsWith "en"`, true},
		{`status contains "pe"`, true},
		{`status matches "^o.+n$"`, true},
		{`team contains "tom"`, true},
		{`"anna" in team`, true},
		{`"joe" in team`, false},
		{`budget in [10, 99]`, true},
		{`!flag`, false},
		{`!missing`, true},
		{`flag && rate > 0.1`, true},
		{`none || budget`, true},
		{`team.length == 2`, true},
		{`team[1] == "tom"`, true},
		{`team[5] == null`, true},
		{`"b" > "a"`, true},
		{`budget > "abc"`, false},
	}
	for _, tc := range cases {
		got := evalString(t, tc.src, vars)
		b, ok := got.(bool)
		if !ok {
			t.Fatalf("%s: expected bool, got %T (%v)", tc.src, got, got)
		}
		if b != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.src, b, tc.want)
		}
	}
}

func TestEvalCoalesceReturnsValue(t *testing.T) {
	got := evalString(t, `missing ?? "fallback"`, Vars{})
	if got != "fallback" {
		t.Fatalf("got %v, want fallback", got)
	}
	got = evalString(t, `zero ?? 5`, Vars{"zero": 0})
	if got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestEvalShortCircuit(t *testing.T) {
	// the right side would fail on an invalid pattern if evaluated
	got := evalString(t, `false && ("a" matches "(")`, Vars{})
	if got != false {
		t.Fatalf("got %v, want false", got)
	}
	n, err := Parse(`"a" matches "("`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := Eval(n, nil); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestIsTruthy(t *testing.T) {
	falsy := []any{nil, false, 0, 0.0, "", []any{}, map[string]any{}}
	for _, v := range falsy {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%#v) = true", v)
		}
	}
	truthy := []any{true, 1, -0.5, "x", []any{nil}, map[string]any{"a": 1}, struct{}{}}
	for _, v := range truthy {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%#v) = false", v)
		}
	}
}

func TestEvaluatorAgainstRecord(t *testing.T) {
	rec := workflow.NewRecord().
		ReplaceItemValue("_budget", 9999).
		ReplaceItemValue("txtStatus", "Open").
		ReplaceItemValue("team", []string{"anna", "tom"}).
		ReplaceItemValue(workflow.ItemProcessID, 1000)

	ev := NewEvaluator()
	ctx := context.Background()
	cases := []struct {
		src  string
		want bool
	}{
		{`workitem._budget[0] > 100`, true},
		{`WorkItem._BUDGET[0] > 100`, true},
		{`record.team contains "tom"`, true},
		{`_budget > 100`, true},
		{`txtstatus == "Open"`, true},
		{`TXTSTATUS == "Open"`, true},
		{`$processid == 1000`, true},
		{`team == "anna"`, true},
		{`workitem.missing == null`, true},
		{`unknown`, false},
	}
	for _, tc := range cases {
		got, err := ev.Evaluate(ctx, tc.src, rec)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.src, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestEvaluatorItemShadowsWorkitem(t *testing.T) {
	rec := workflow.NewRecord().ReplaceItemValue("record", "mine")
	v, err := NewEvaluator().Value(context.Background(), `record`, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "mine" {
		t.Fatalf("got %v, want mine", v)
	}
}

func TestEvaluatorCompile(t *testing.T) {
	ev := NewEvaluator()
	if err := ev.Compile(`a > 1`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ev.Compile(`a >`)
	if err == nil || !strings.Contains(err.Error(), "position") {
		t.Fatalf("expected positioned syntax error, got %v", err)
	}
}

func TestEvaluatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEvaluator().Evaluate(ctx, `true`, workflow.NewRecord()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluatorConcurrentUse(t *testing.T) {
	ev := NewEvaluator()
	rec := workflow.NewRecord().ReplaceItemValue("n", 5)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ev.Evaluate(context.Background(), `n >= 5 && n < 6`, rec)
			if err != nil || !ok {
				t.Errorf("got %v, %v", ok, err)
			}
		}()
	}
	wg.Wait()
}

func TestEvaluatorCacheIsBounded(t *testing.T) {
	ev := NewEvaluatorSize(4)
	rec := workflow.NewRecord().ReplaceItemValue("n", 5)
	for i := 0; i < 50; i++ {
		if _, err := ev.Evaluate(context.Background(), fmt.Sprintf("n == %d", i), rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := ev.Cached(); got != 4 {
		t.Fatalf("cached %d expressions, want 4", got)
	}
	if got := NewEvaluatorSize(0).Cached(); got != 0 {
		t.Fatalf("new evaluator holds %d expressions", got)
	}
}

func TestPatternCacheIsBounded(t *testing.T) {
	for i := 0; i < patternCacheSize+50; i++ {
		ok, err := matches(fmt.Sprintf("id-%d", i), fmt.Sprintf("^id-%d$", i))
		if err != nil || !ok {
			t.Fatalf("pattern %d: got %v, %v", i, ok, err)
		}
	}
	if got := patterns.Len(); got > patternCacheSize {
		t.Fatalf("pattern cache holds %d entries, limit %d", got, patternCacheSize)
	}
}
