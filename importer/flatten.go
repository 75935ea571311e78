package importer

import (
	"encoding/json"
)

// Flatten turns a nested JSON object into a Record keyed by dotted paths:
// {"regiao": {"id": 3}} becomes {"regiao.id": 3}. A null nested object
// stays as a single null key. Arrays are not expected in the IBGE payloads;
// they are kept as their JSON text.
func Flatten(obj map[string]interface{}) Record {
	rec := make(Record, len(obj))
	flattenInto(rec, "", obj)
	return rec
}

func flattenInto(rec Record, prefix string, obj map[string]interface{}) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]interface{}:
			if len(x) == 0 {
				rec[key] = nil
				continue
			}
			flattenInto(rec, key, x)
		case []interface{}:
			b, err := json.Marshal(x)
			if err != nil {
				rec[key] = nil
				continue
			}
			rec[key] = string(b)
		default:
			rec[key] = v
		}
	}
}
