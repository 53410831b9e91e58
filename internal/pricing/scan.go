package pricing

import "encoding/json"

// The helpers below walk a document already checked with json.Valid and
// report byte offsets into it.

type span struct {
	start, end int
}

// member is one key/value pair of an object.
type member struct {
	key        string
	keyStart   int
	valueStart int
	valueEnd   int
}

func skipSpace(b []byte, i int) int {
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func stringEnd(b []byte, i int) int {
	for i++; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return i
}

// valueEnd returns the offset just past the value starting at i.
func valueEnd(b []byte, i int) int {
	switch b[i] {
	case '"':
		return stringEnd(b, i)
	case '{', '[':
		depth := 0
		for i < len(b) {
			switch b[i] {
			case '"':
				i = stringEnd(b, i)
				continue
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return i + 1
				}
			}
			i++
		}
		return i
	default:
		for i < len(b) {
			switch b[i] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return i
			}
			i++
		}
		return i
	}
}

// members lists the pairs of the object whose '{' is at i.
func members(b []byte, i int) []member {
	var out []member
	i = skipSpace(b, i+1)
	for i < len(b) && b[i] != '}' {
		ks := i
		ke := stringEnd(b, ks)
		var key string
		_ = json.Unmarshal(b[ks:ke], &key)

		i = skipSpace(b, ke)
		vs := skipSpace(b, i+1)
		ve := valueEnd(b, vs)
		out = append(out, member{key: key, keyStart: ks, valueStart: vs, valueEnd: ve})

		i = skipSpace(b, ve)
		if i < len(b) && b[i] == ',' {
			i = skipSpace(b, i+1)
		}
	}
	return out
}

// elements lists the value offsets of the array whose '[' is at i.
func elements(b []byte, i int) []int {
	var out []int
	i = skipSpace(b, i+1)
	for i < len(b) && b[i] != ']' {
		out = append(out, i)
		i = skipSpace(b, valueEnd(b, i))
		if i < len(b) && b[i] == ',' {
			i = skipSpace(b, i+1)
		}
	}
	return out
}

// lastMember finds key; like encoding/json, a repeated key resolves to its
// last occurrence.
func lastMember(ms []member, key string) (member, bool) {
	for i := len(ms) - 1; i >= 0; i-- {
		if ms[i].key == key {
			return ms[i], true
		}
	}
	return member{}, false
}
