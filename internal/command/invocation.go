package command

import "fmt"

// Invocation is the captured argument array of one command execution.
type Invocation struct {
	Positionals []any
	Options     map[string]any
}

// Arg returns the i-th positional argument as a string, or "" when absent.
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Positionals) {
		return ""
	}
	switch v := inv.Positionals[i].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the boolean option key. Missing or non-boolean values are false.
func (inv *Invocation) Bool(key string) bool {
	v, _ := inv.Options[key].(bool)
	return v
}

// String returns the string option key, or "" when missing or not a string.
func (inv *Invocation) String(key string) string {
	v, _ := inv.Options[key].(string)
	return v
}
