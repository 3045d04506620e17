package evaluator

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// invocationCounter assigns a globally unique id to every custom
// function call site across every compiled campaign. Uniqueness must
// be global, not per-expression: the custom function registry is
// shared across campaigns, so two campaigns both starting their own
// call sites at id 0 would alias each other's invocation state.
var invocationCounter atomic.Uint64

func nextInvocationID() int {
	return int(invocationCounter.Add(1) - 1)
}

// injectInvocationIDs rewrites every call to a name in fnNames within
// expr, inserting a hidden leading integer-literal argument carrying
// that call site's invocation id. CEL function bindings only see
// argument values, not source position, so the id has to travel in as
// an ordinary (if invisible to the campaign author) argument (spec
// §4.6: "invocation identities ... threaded through ... as an extra
// hidden argument"). Returns the rewritten expression and the ids
// assigned, one per call site, in source order.
//
// This is a small hand-rolled scanner, not a full CEL lexer: it skips
// over quoted string contents so a literal like "abs(" inside a
// string is never mistaken for a call, but it does not otherwise
// understand CEL grammar.
func injectInvocationIDs(expr string, fnNames map[string]bool) (string, []int) {
	var b strings.Builder
	var ids []int
	i, n := 0, len(expr)
	var quote byte

	for i < n {
		c := expr[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < n {
				b.WriteByte(expr[i+1])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}

		if c == '\'' || c == '"' {
			quote = c
			b.WriteByte(c)
			i++
			continue
		}

		if isIdentStart(c) {
			j := i
			for j < n && isIdentPart(expr[j]) {
				j++
			}
			name := expr[i:j]
			k := j
			for k < n && (expr[k] == ' ' || expr[k] == '\t') {
				k++
			}
			if fnNames[name] && k < n && expr[k] == '(' {
				b.WriteString(name)
				b.WriteByte('(')
				id := nextInvocationID()
				ids = append(ids, id)
				fmt.Fprintf(&b, "%d", id)

				m := k + 1
				for m < n && (expr[m] == ' ' || expr[m] == '\t') {
					m++
				}
				if m < n && expr[m] != ')' {
					b.WriteByte(',')
				}
				i = k + 1
				continue
			}
			b.WriteString(name)
			i = j
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String(), ids
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
