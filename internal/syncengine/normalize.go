package syncengine

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/magadhlabs/lmsync/internal/model"
)

// normalizeList converts a raw collection document into a canonical
// deduplicated sequence. The remote store can surface a list-shaped
// collection as either an array (possibly carrying duplicate ids after
// concurrent last-writer-wins updates) or a keyed object (after granular
// item writes); both collapse to one sequence with exactly one record per
// id, last-seen value winning, first-seen position kept. Records without an
// id are dropped. dropped counts collapsed duplicates.
func normalizeList(raw json.RawMessage) (out []json.RawMessage, dropped int) {
	elements := toSequence(raw)

	order := make([]string, 0, len(elements))
	byID := make(map[string]json.RawMessage, len(elements))
	for _, el := range elements {
		rec, ok := model.ParseRecord(el)
		if !ok {
			continue
		}
		if _, seen := byID[rec.ID]; seen {
			dropped++
		} else {
			order = append(order, rec.ID)
		}
		byID[rec.ID] = rec.Raw
	}

	out = make([]json.RawMessage, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, dropped
}

// toSequence returns raw's elements. An object's values are emitted in
// ascending key order so the sequence is deterministic.
func toSequence(raw json.RawMessage) []json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		out = append(out, obj[k])
	}
	return out
}

// marshalSequence renders a sequence back to a JSON array.
func marshalSequence(seq []json.RawMessage) json.RawMessage {
	if seq == nil {
		seq = []json.RawMessage{}
	}
	buf, err := json.Marshal(seq)
	if err != nil {
		return json.RawMessage("[]")
	}
	return buf
}

// jsonEqual compares two raw values structurally, ignoring formatting.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
