package action

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// object is a JSON object with undecoded members. Accessors never fail: a
// missing or wrong-typed member yields the zero value, so one bad field
// does not prevent reading its siblings. A nil object behaves as empty.
type object map[string]json.RawMessage

func parseObject(raw []byte) (object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedPayload
	}
	var o object
	if err := json.Unmarshal(trimmed, &o); err != nil {
		return nil, ErrMalformedPayload
	}
	return o, nil
}

func (o object) str(key string) string {
	var s string
	if err := json.Unmarshal(o[key], &s); err != nil {
		return ""
	}
	return s
}

// id reads an identifier that the server encodes as either a string or a number.
func (o object) id(key string) string {
	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		return o.str(key)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

func (o object) int(key string) int {
	var n int
	if err := json.Unmarshal(o[key], &n); err != nil {
		return 0
	}
	return n
}

func (o object) obj(key string) object {
	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var inner object
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil
	}
	return inner
}

// args reads the "args" array. Non-string elements become "".
func (o object) args() []string {
	var elems []json.RawMessage
	if err := json.Unmarshal(o["args"], &elems); err != nil {
		return nil
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			out[i] = s
		}
	}
	return out
}

func parseUint32(s string) (uint32, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
