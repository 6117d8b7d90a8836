// Package translate rewrites query text and validates parameters so the
// same SQL behaves identically on both backends.
package translate

import (
	"fmt"
	"strings"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// BindParams converts the universal `?` positional marker into the
// target backend's native syntax and returns the rewritten SQL together
// with the number of markers found.
//
// Markers inside single- or double-quoted literals are left untouched
// and not counted. Doubled quotes ('' and "") are the standard escape in
// both dialects and keep the literal open. Nothing else in the input is
// altered.
func BindParams(sql string, style dbcapabilities.PlaceholderStyle) (string, int) {
	if style == dbcapabilities.PlaceholderQuestion {
		// Native syntax already; still count the markers.
		return sql, countMarkers(sql)
	}

	var out strings.Builder
	out.Grow(len(sql) + 8)

	count := 0
	var quote byte // 0 when outside a literal
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				// A doubled quote escapes itself and stays inside the literal.
				if i+1 < len(sql) && sql[i+1] == quote {
					out.WriteByte(c)
					out.WriteByte(c)
					i++
					continue
				}
				quote = 0
			}
			out.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			out.WriteByte(c)
		case c == '?':
			count++
			fmt.Fprintf(&out, "$%d", count)
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), count
}

func countMarkers(sql string) int {
	count := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				if i+1 < len(sql) && sql[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			count++
		}
	}
	return count
}

// VerifyParams checks that every parameter is a type both backends can
// bind: string, a numeric type, raw bytes or nil. Anything else returns
// a BindingError before the statement is sent anywhere.
func VerifyParams(params []interface{}) error {
	for i, p := range params {
		switch p.(type) {
		case nil:
		case string, []byte:
		case int, int8, int16, int32, int64:
		case uint, uint8, uint16, uint32, uint64:
		case float32, float64:
		default:
			return adapter.NewBindingError(i, p)
		}
	}
	return nil
}
