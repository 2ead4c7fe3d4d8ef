package common

import (
	"encoding/json"
	"fmt"
)

// SanitizeMetadata coerces arbitrary metadata values into the string/number
// forms the pinning API accepts. The remote service rejects structured values,
// so the coercion rules are a contract, not a convenience:
//
//	string            -> kept as-is
//	int/int64/float64 -> kept as number (float64)
//	bool              -> "true" / "false"
//	nil               -> dropped
//	map/slice         -> compact JSON string
//	anything else     -> fmt.Sprint value
func SanitizeMetadata(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return map[string]interface{}{}
	}

	out := make(map[string]interface{}, len(meta))
	for key, val := range meta {
		switch v := val.(type) {
		case nil:
			continue
		case string:
			out[key] = v
		case int:
			out[key] = float64(v)
		case int32:
			out[key] = float64(v)
		case int64:
			out[key] = float64(v)
		case float32:
			out[key] = float64(v)
		case float64:
			out[key] = v
		case bool:
			if v {
				out[key] = "true"
			} else {
				out[key] = "false"
			}
		case map[string]interface{}, []interface{}:
			data, err := json.Marshal(v)
			if err != nil {
				out[key] = fmt.Sprint(v)
				continue
			}
			out[key] = string(data)
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}
