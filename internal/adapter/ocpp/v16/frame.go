package v16

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OCPP 1.6J message type IDs (ocpp-messages spec section 4).
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// callFrame is an inbound or outbound [2, uniqueId, action, payload] frame.
type callFrame struct {
	UniqueID string
	Action   string
	Payload  json.RawMessage
}

func decodeFrame(raw []byte) (msgType int, uniqueID string, action string, payload json.RawMessage, err error) {
	var parts []json.RawMessage
	if err = json.Unmarshal(raw, &parts); err != nil {
		return 0, "", "", nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(parts) < 3 {
		return 0, "", "", nil, fmt.Errorf("frame too short: %d elements", len(parts))
	}
	if err = json.Unmarshal(parts[0], &msgType); err != nil {
		return 0, "", "", nil, fmt.Errorf("invalid message type id: %w", err)
	}
	if err = json.Unmarshal(parts[1], &uniqueID); err != nil {
		return 0, "", "", nil, fmt.Errorf("invalid unique id: %w", err)
	}

	switch msgType {
	case MessageTypeCall:
		if len(parts) < 4 {
			return 0, "", "", nil, fmt.Errorf("CALL frame missing payload")
		}
		if err = json.Unmarshal(parts[2], &action); err != nil {
			return 0, "", "", nil, fmt.Errorf("invalid action: %w", err)
		}
		payload = parts[3]
	case MessageTypeCallResult:
		payload = parts[2]
	case MessageTypeCallError:
		payload = raw
	default:
		return 0, "", "", nil, fmt.Errorf("unknown message type id: %d", msgType)
	}
	return msgType, uniqueID, action, payload, nil
}

func encodeCall(uniqueID, action string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCall, uniqueID, action, payload})
}

func encodeCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCallResult, uniqueID, payload})
}

func encodeCallError(uniqueID, errorCode, description string) ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCallError, uniqueID, errorCode, description, map[string]string{}})
}

// normalizeFieldNames rewrites every object key in payload to its
// lower-cased, underscore-stripped form (e.g. "Connector_Id" and
// "connector_id" both become "connectorid") so it unmarshals into our
// camelCase-tagged request structs regardless of whether the charge
// point sent camelCase or snake_case keys. encoding/json already
// matches struct tags case-insensitively, so stripping underscores is
// the only transform needed.
func normalizeFieldNames(payload json.RawMessage) json.RawMessage {
	var generic interface{}
	if err := json.Unmarshal(payload, &generic); err != nil {
		return payload
	}
	normalized, err := json.Marshal(normalizeValue(generic))
	if err != nil {
		return payload
	}
	return normalized
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[normalizeKey(k)] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}
