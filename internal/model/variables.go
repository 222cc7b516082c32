package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Well-known dynamic variable keys. Anything else is carried as-is.
const (
	VarPurpose         = "purpose"
	VarCustomMessage   = "custom_message"
	VarBusinessName    = "business_name"
	VarAgentName       = "agent_name"
	VarTransferNumber  = "transfer_number"
	VarCanTransfer     = "can_transfer"
	VarOutboundPurpose = "outbound_purpose"
	VarCustomerName    = "customer_name"
	VarAppointmentTime = "appointment_time"
	VarReminderType    = "reminder_type"
)

// DynamicVariables is the key/value bag handed to the voice agent.
// Values are restricted to string, float64 and bool.
type DynamicVariables map[string]any

// Set stores value under key, normalizing integer types to float64.
func (v DynamicVariables) Set(key string, value any) error {
	switch val := value.(type) {
	case string, float64, bool:
		v[key] = val
	case int:
		v[key] = float64(val)
	case int64:
		v[key] = float64(val)
	case float32:
		v[key] = float64(val)
	default:
		return fmt.Errorf("dynamic variable %q: unsupported type %T", key, value)
	}
	return nil
}

// String returns the string form of key, or "" when absent.
func (v DynamicVariables) String(key string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return ""
	}
	return stringify(raw)
}

// Validate rejects values outside string | number | bool.
func (v DynamicVariables) Validate() error {
	for key, raw := range v {
		switch raw.(type) {
		case string, float64, bool:
		default:
			return fmt.Errorf("dynamic variable %q: unsupported type %T", key, raw)
		}
	}
	return nil
}

// Merge copies every key of other into v, overwriting collisions.
func (v DynamicVariables) Merge(other DynamicVariables) {
	for key, raw := range other {
		v[key] = raw
	}
}

// Flatten renders every value as a string, which is what the provider accepts.
func (v DynamicVariables) Flatten() map[string]string {
	out := make(map[string]string, len(v))
	for key, raw := range v {
		out[key] = stringify(raw)
	}
	return out
}

func stringify(raw any) string {
	switch val := raw.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func (v DynamicVariables) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func (v *DynamicVariables) Scan(src any) error {
	return scanJSON(src, v)
}

// Metadata is free-form data kept alongside a queue entry.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch val := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into json column", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, dst), "decode json column")
}
