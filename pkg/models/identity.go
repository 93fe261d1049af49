package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// TriggerIdentity builds the canonical identity key for a trigger
// configuration: providerType:providerAlias:triggerType:canonicalInput.
// Object keys are sorted recursively at every nesting level, so two inputs
// that differ only in map ordering produce the same identity. Array order is
// preserved: it is part of the configuration.
func TriggerIdentity(providerType, providerAlias, triggerType string, input map[string]any) string {
	var b strings.Builder

	b.WriteString(providerType)
	b.WriteByte(':')
	b.WriteString(providerAlias)
	b.WriteByte(':')
	b.WriteString(triggerType)
	b.WriteByte(':')
	writeCanonical(&b, input)

	return b.String()
}

func writeCanonical(b *strings.Builder, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		b.WriteByte('{')

		for i, key := range keys {
			if i > 0 {
				b.WriteByte(',')
			}

			b.WriteString(strconv.Quote(key))
			b.WriteByte(':')
			writeCanonical(b, v[key])
		}

		b.WriteByte('}')
	case []any:
		b.WriteByte('[')

		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}

			writeCanonical(b, item)
		}

		b.WriteByte(']')
	case nil:
		b.WriteString("null")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			b.WriteString(strconv.Quote("unencodable"))

			return
		}

		b.Write(encoded)
	}
}
