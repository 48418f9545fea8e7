package dbentity

import (
	"github.com/mynosql/dbcore/microtime"
)

// byteRange is a half-open [Start, End) slice of a Row's raw bytes.
type byteRange struct {
	Start, End int
}

func (r byteRange) slice(raw []byte) []byte { return raw[r.Start:r.End] }

func (r byteRange) empty() bool { return r.Start == 0 && r.End == 0 }

// fieldSpan locates a JSON object member whose value may need to be
// rewritten in place: KeyStart is the position of the member's opening key
// quote, ValueEnd is the position just past the member's value. This is
// exactly the pair Row.WriteJSON needs to excise or replace the member
// (see db_row.rs's write_json, which only ever reads expires.key.start and
// expires.value.end).
type fieldSpan struct {
	KeyStart int
	ValueEnd int
	Value    byteRange
}

// parseResult is the position map produced by parse: byte ranges into the
// (possibly TimeStamp-spliced) raw buffer for each recognized field.
type parseResult struct {
	PartitionKey byteRange
	RowKey       byteRange
	TimeStamp    byteRange // empty() if absent
	Expires      *fieldSpan
	ExpiresValue microtime.Micros
}

type objectMember struct {
	keyStart int
	key      string
	value    byteRange // content only: unquoted for strings
	valueEnd int        // position just past the full value (incl. closing quote)
	isString bool
}

// parse walks the top-level JSON object in raw exactly once, recording the
// byte positions of PartitionKey, RowKey, TimeStamp and Expires without a
// full encoding/json unmarshal. This mirrors the byte-position location
// technique in go/flow/raw_json.go's findUUID, generalized from a single
// fixed-length field to a variable-length field that must support
// insertion/removal (Expires), not just same-length in-place replacement.
//
// When masterNode is true and TimeStamp is absent, a TimeStamp member is
// spliced into the returned raw buffer before position offsets are
// finalized, per spec §4.1. The caller must use the returned raw buffer
// (not its original argument) from that point on.
func parse(raw []byte, masterNode bool, now microtime.Micros) (parseResult, []byte, error) {
	members, endOfObject, err := scanObjectMembers(raw)
	if err != nil {
		return parseResult{}, raw, err
	}

	var pk, rk, ts *objectMember
	var expiresMember *objectMember
	for i := range members {
		switch members[i].key {
		case "PartitionKey":
			pk = &members[i]
		case "RowKey":
			rk = &members[i]
		case "TimeStamp":
			ts = &members[i]
		case "Expires":
			expiresMember = &members[i]
		}
	}

	if pk == nil {
		return parseResult{}, raw, &RequiredFieldMissingError{Field: "PartitionKey"}
	}
	if rk == nil {
		return parseResult{}, raw, &RequiredFieldMissingError{Field: "RowKey"}
	}

	var result parseResult
	result.PartitionKey = pk.value
	result.RowKey = rk.value

	if expiresMember != nil {
		if v, ok := microtime.Parse(string(expiresMember.value.slice(raw))); ok {
			result.ExpiresValue = v
		}
		result.Expires = &fieldSpan{
			KeyStart: expiresMember.keyStart,
			ValueEnd: expiresMember.valueEnd,
			Value:    expiresMember.value,
		}
	}

	if ts != nil {
		result.TimeStamp = ts.value
		return result, raw, nil
	}

	if !masterNode {
		return result, raw, nil
	}

	// Synthesize TimeStamp by splicing a new member before the closing
	// brace; offsets computed above (all < endOfObject) remain valid since
	// the splice happens strictly after every recorded position.
	stamp := now.Format()
	insertion := []byte(`,"TimeStamp":"` + stamp + `"`)

	spliced := make([]byte, 0, len(raw)+len(insertion))
	spliced = append(spliced, raw[:endOfObject]...)
	spliced = append(spliced, insertion...)
	spliced = append(spliced, raw[endOfObject:]...)

	tsValueStart := endOfObject + len(`,"TimeStamp":"`)
	result.TimeStamp = byteRange{Start: tsValueStart, End: tsValueStart + len(stamp)}

	return result, spliced, nil
}

// scanObjectMembers performs a single forward pass over a top-level JSON
// object, recording each member's key name, key-quote position, and value
// span. It does not validate that the document is otherwise well-formed
// JSON beyond what is needed to correctly skip nested values; malformed
// input yields ErrJSONParseFail.
func scanObjectMembers(raw []byte) ([]objectMember, int, error) {
	i := skipWhitespace(raw, 0)
	if i >= len(raw) || raw[i] != '{' {
		return nil, 0, ErrJSONParseFail
	}
	i++

	var members []objectMember

	i = skipWhitespace(raw, i)
	if i < len(raw) && raw[i] == '}' {
		return members, i, nil
	}

	for {
		i = skipWhitespace(raw, i)
		if i >= len(raw) || raw[i] != '"' {
			return nil, 0, ErrJSONParseFail
		}
		keyStart := i
		keyContent, next, ok := scanString(raw, i)
		if !ok {
			return nil, 0, ErrJSONParseFail
		}
		i = next

		i = skipWhitespace(raw, i)
		if i >= len(raw) || raw[i] != ':' {
			return nil, 0, ErrJSONParseFail
		}
		i++
		i = skipWhitespace(raw, i)
		if i >= len(raw) {
			return nil, 0, ErrJSONParseFail
		}

		var value byteRange
		var isString bool
		var valueEnd int
		if raw[i] == '"' {
			content, vEnd, ok := scanString(raw, i)
			if !ok {
				return nil, 0, ErrJSONParseFail
			}
			// content is relative to raw[i+1:]; recompute as absolute range.
			value = byteRange{Start: i + 1, End: i + 1 + len(content)}
			valueEnd = vEnd
			isString = true
		} else {
			vEnd, err := skipValue(raw, i)
			if err != nil {
				return nil, 0, err
			}
			value = byteRange{Start: i, End: vEnd}
			valueEnd = vEnd
		}
		i = valueEnd

		members = append(members, objectMember{
			keyStart: keyStart,
			key:      keyContent,
			value:    value,
			valueEnd: valueEnd,
			isString: isString,
		})

		i = skipWhitespace(raw, i)
		if i >= len(raw) {
			return nil, 0, ErrJSONParseFail
		}
		if raw[i] == ',' {
			i++
			continue
		}
		if raw[i] == '}' {
			return members, i, nil
		}
		return nil, 0, ErrJSONParseFail
	}
}

func skipWhitespace(raw []byte, i int) int {
	for i < len(raw) {
		switch raw[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// scanString reads a JSON string starting at raw[start] == '"'. It returns
// the *raw* (still-escaped, not unescaped) content between the quotes, and
// the index just past the closing quote. Field
// accessors on Row intentionally return this raw slice rather than an
// unescaped copy, preserving the store's zero-copy contract (C2 "zero-copy
// slice into raw").
func scanString(raw []byte, start int) (string, int, bool) {
	i := start + 1
	for i < len(raw) {
		switch raw[i] {
		case '\\':
			i += 2
		case '"':
			return string(raw[start+1 : i]), i + 1, true
		default:
			i++
		}
	}
	return "", 0, false
}

// skipValue advances past a non-string JSON value (object, array, number,
// true, false, null) starting at raw[i], returning the index just past it.
func skipValue(raw []byte, i int) (int, error) {
	if i >= len(raw) {
		return 0, ErrJSONParseFail
	}
	switch raw[i] {
	case '{', '[':
		open, close := byte('{'), byte('}')
		if raw[i] == '[' {
			open, close = '[', ']'
		}
		depth := 0
		for i < len(raw) {
			switch raw[i] {
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return i + 1, nil
				}
			case '"':
				_, next, ok := scanString(raw, i)
				if !ok {
					return 0, ErrJSONParseFail
				}
				i = next
				continue
			}
			i++
		}
		return 0, ErrJSONParseFail
	default:
		// number, true, false, null: scan until a structural character.
		start := i
		for i < len(raw) {
			switch raw[i] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				if i == start {
					return 0, ErrJSONParseFail
				}
				return i, nil
			}
			i++
		}
		if i == start {
			return 0, ErrJSONParseFail
		}
		return i, nil
	}
}

// getTheEndOfTheJSON returns the index of the top-level closing '}'.
func getTheEndOfTheJSON(raw []byte) int {
	depth := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '"':
			_, next, ok := scanString(raw, i)
			if !ok {
				return len(raw)
			}
			i = next - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(raw)
}
