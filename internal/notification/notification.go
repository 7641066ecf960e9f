package notification

import (
	"errors"
	"fmt"
	"maps"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Notification is a single push event. Values are never mutated after
// construction and are not persisted by the delivery path.
type Notification struct {
	Id        string         `json:"id,omitempty"`
	Type      Type           `json:"type"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var ErrReservedType = errors.New("notification type is reserved")

func New(t Type, title string, message string, data map[string]any) (Notification, error) {
	if !t.Valid() {
		return Notification{}, fmt.Errorf("unknown notification type %q", string(t))
	}

	if !t.Producible() {
		return Notification{}, ErrReservedType
	}

	return Notification{
		Id:        gonanoid.Must(),
		Type:      t,
		Title:     title,
		Message:   message,
		Data:      maps.Clone(data),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Connected is the acknowledgement written when a stream opens.
func Connected(now time.Time) Notification {
	return Notification{
		Type:      TypeConnected,
		Timestamp: now.UTC(),
	}
}

func must(t Type, title string, message string, data map[string]any) Notification {
	n, err := New(t, title, message, data)
	if err != nil {
		panic(err)
	}

	return n
}

func DefectCreated(defectId int64, taskName string, severity string) Notification {
	return must(TypeDefectCreated,
		"New defect reported",
		fmt.Sprintf("Task %q has a new defect (severity: %s)", taskName, severity),
		map[string]any{"defectId": defectId},
	)
}

func TaskOverdue(taskId int64, taskName string, daysOverdue int) Notification {
	return must(TypeTaskOverdue,
		"Task overdue",
		fmt.Sprintf("Task %q is %d days overdue", taskName, daysOverdue),
		map[string]any{"taskId": taskId},
	)
}

func TaskAssigned(taskId int64, taskName string, assignedBy string) Notification {
	return must(TypeTaskAssigned,
		"New task assigned",
		fmt.Sprintf("%s assigned task %q to you", assignedBy, taskName),
		map[string]any{"taskId": taskId},
	)
}

func CommentMention(taskId int64, taskName string, mentionedBy string, preview string) Notification {
	return must(TypeCommentMention,
		"You were mentioned",
		fmt.Sprintf("%s mentioned you in task %q: %s", mentionedBy, taskName, preview),
		map[string]any{"taskId": taskId},
	)
}

func InspectionFailed(inspectionId int64, taskName string, failedItems int) Notification {
	return must(TypeInspectionFailed,
		"Inspection failed",
		fmt.Sprintf("Task %q has %d failed inspection items", taskName, failedItems),
		map[string]any{"inspectionId": inspectionId},
	)
}

func TaskUpdated(taskId int64, taskName string, updateType string, updatedBy string) Notification {
	return must(TypeTaskUpdated,
		"Task updated",
		fmt.Sprintf("%s %s task %q", updatedBy, updateType, taskName),
		map[string]any{"taskId": taskId},
	)
}
