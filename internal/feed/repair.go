package feed

import (
	"bytes"
	"regexp"
)

// The upstream hazard feed is assembled by ad hoc tooling and arrives in
// several broken shapes: multiple top-level JSON values pasted back to
// back, trailing commas before closing brackets, bare NaN/Infinity
// literals where a sensor had no value, and the occasional UTF-8 BOM.
// Repair normalizes all of those into a single parseable JSON array
// without touching the record contents.

var (
	concatObjects = regexp.MustCompile(`\}\s*\{`)
	concatArrays  = regexp.MustCompile(`\]\s*\[`)
	trailingComma = regexp.MustCompile(`,\s*([\]\}])`)
)

// Repair rewrites a raw feed payload into well-formed JSON. The result is
// always a candidate for json.Unmarshal; whether the records inside make
// sense is Parse's problem.
func Repair(raw []byte) []byte {
	out := bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return out
	}

	// Concatenated top-level values become elements of one array.
	joined := concatObjects.ReplaceAll(out, []byte("},{"))
	wasConcat := !bytes.Equal(joined, out)
	out = concatArrays.ReplaceAll(joined, []byte(","))

	if wasConcat && out[0] == '{' {
		buf := make([]byte, 0, len(out)+2)
		buf = append(buf, '[')
		buf = append(buf, out...)
		buf = append(buf, ']')
		out = buf
	}

	out = trailingComma.ReplaceAll(out, []byte("$1"))
	out = replaceNonFinite(out)

	return out
}

// replaceNonFinite rewrites bare NaN/Infinity/-Infinity literals to null.
// The scan tracks string state so the same characters inside a quoted
// value are left alone.
func replaceNonFinite(in []byte) []byte {
	out := make([]byte, 0, len(in))
	inString := false

	for i := 0; i < len(in); {
		c := in[i]
		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(in) {
				out = append(out, in[i+1])
				i += 2
				continue
			}
			if c == '"' {
				inString = false
			}
			i++
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
			i++
		case bytes.HasPrefix(in[i:], []byte("-Infinity")):
			out = append(out, "null"...)
			i += len("-Infinity")
		case bytes.HasPrefix(in[i:], []byte("Infinity")):
			out = append(out, "null"...)
			i += len("Infinity")
		case bytes.HasPrefix(in[i:], []byte("NaN")):
			out = append(out, "null"...)
			i += len("NaN")
		default:
			out = append(out, c)
			i++
		}
	}

	return out
}
