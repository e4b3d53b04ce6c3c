// Package flagutil supplies flag.Value implementations used by racedoh commands.
//
// StringValue collects every occurrence of a repeatable option. A single occurrence may also carry
// a comma separated list so that long upstream lists can be given either way:
//
//	$ racedoh-server -u https://a/dns-query -u https://b/dns-query
//	$ racedoh-server -u https://a/dns-query,https://b/dns-query
//
// Usage is as for any flag.Value:
//
//	var ms flagutil.StringValue
//	flagSet.Var(&ms, "someopt", "Short description of opt")
//	args := ms.Args()
package flagutil

import (
	"strings"
)

// StringValue is the type provided to flag.Var()
type StringValue struct {
	strings []string
}

// Set is called by the flag package for each occurrence of the option. The value is split on commas
// with surrounding white-space trimmed and empty elements dropped. Part of the flag.Value
// interface.
func (t *StringValue) Set(s string) error {
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if len(e) > 0 {
			t.strings = append(t.strings, e)
		}
	}

	return nil
}

// String returns a space separated string of all the values accumulated by Set. Part of the
// flag.Value interface.
func (t *StringValue) String() string {
	return strings.Join(t.strings, " ")
}

// Args returns a copy of the accumulated values which the caller is free to modify.
func (t *StringValue) Args() []string {
	return append([]string{}, t.strings...)
}

// NArg returns the number of accumulated values
func (t *StringValue) NArg() int {
	return len(t.strings)
}
