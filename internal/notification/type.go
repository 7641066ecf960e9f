package notification

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeConnected        Type = "connected"
	TypeDefectCreated    Type = "defect_created"
	TypeTaskOverdue      Type = "task_overdue"
	TypeTaskAssigned     Type = "task_assigned"
	TypeCommentMention   Type = "comment_mention"
	TypeInspectionFailed Type = "inspection_failed"
	TypeTaskUpdated      Type = "task_updated"
)

// Types lists every known notification type in declaration order.
var Types = []Type{
	TypeConnected,
	TypeDefectCreated,
	TypeTaskOverdue,
	TypeTaskAssigned,
	TypeCommentMention,
	TypeInspectionFailed,
	TypeTaskUpdated,
}

type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown notification type %q", s)
	}

	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case TypeConnected,
		TypeDefectCreated,
		TypeTaskOverdue,
		TypeTaskAssigned,
		TypeCommentMention,
		TypeInspectionFailed,
		TypeTaskUpdated:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// Severity is the presentation level clients use for toasts.
func (t Type) Severity() Severity {
	switch t {
	case TypeDefectCreated, TypeInspectionFailed:
		return SeverityError
	case TypeTaskOverdue:
		return SeverityWarning
	case TypeTaskAssigned, TypeCommentMention, TypeTaskUpdated:
		return SeverityInfo
	case TypeConnected:
		return SeverityNone
	default:
		panic("notification: severity of unknown type " + string(t))
	}
}

// Producible reports whether producers may emit this type. The handshake
// event is reserved for the registry.
func (t Type) Producible() bool {
	return t.Valid() && t != TypeConnected
}

func (t Type) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown notification type %q", string(t))
	}

	return json.Marshal(string(t))
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseType(s)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
