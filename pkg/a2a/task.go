package a2a

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

/*
NewTask returns a freshly submitted task.
*/
func NewTask(id, sessionID string, metadata map[string]any, now time.Time) *Task {
	return &Task{
		ID:        id,
		SessionID: sessionID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: now,
		},
		Metadata: cloneMap(metadata),
	}
}

func (task *Task) Clone() *Task {
	if task == nil {
		return nil
	}

	return &Task{
		ID:        task.ID,
		SessionID: task.SessionID,
		Status:    task.Status.Clone(),
		History:   cloneMessages(task.History),
		Artifacts: cloneArtifacts(task.Artifacts),
		Metadata:  cloneMap(task.Metadata),
	}
}

/*
ToStatus replaces the current status. The message is kept as given, which
includes nil.
*/
func (task *Task) ToStatus(state TaskState, message *Message, timestamp time.Time) {
	task.Status.State = state
	task.Status.Timestamp = timestamp
	task.Status.Message = message.Clone()
}

/*
UpsertArtifact applies one artifact chunk. The chunk lands on the artifact
with the same Index: appended to it when chunk.Append is set, replacing it
otherwise. Chunks for an unseen index are added at the end.
*/
func (task *Task) UpsertArtifact(chunk Artifact) {
	for i := range task.Artifacts {
		if task.Artifacts[i].Index != chunk.Index {
			continue
		}

		if chunk.Append {
			task.Artifacts[i].merge(chunk)
			return
		}

		task.Artifacts[i] = chunk.Clone()
		task.Artifacts[i].Append = false
		return
	}

	artifact := chunk.Clone()
	artifact.Append = false
	task.Artifacts = append(task.Artifacts, artifact)
}

/*
TaskAndHistory is the unit of persistence: a task plus every message
exchanged for it, in order.
*/
type TaskAndHistory struct {
	Task    *Task     `json:"task"`
	History []Message `json:"history"`
}

func (data *TaskAndHistory) Clone() *TaskAndHistory {
	if data == nil {
		return nil
	}

	history := cloneMessages(data.History)

	if history == nil {
		history = []Message{}
	}

	return &TaskAndHistory{
		Task:    data.Task.Clone(),
		History: history,
	}
}

// TaskHistory is the on-disk shape of a task's message history.
type TaskHistory struct {
	// MessageHistory is the list of messages in chronological order
	MessageHistory []Message `json:"messageHistory"`
}

/*
TaskStatusUpdateEvent is sent when the agent wishes to inform the client of
a status transition.
*/
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (event TaskStatusUpdateEvent) TaskID() string { return event.ID }
func (event TaskStatusUpdateEvent) IsFinal() bool  { return event.Final }

/*
TaskArtifactUpdateEvent is emitted when a new or updated artefact is
available for a task.
*/
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (event TaskArtifactUpdateEvent) TaskID() string { return event.ID }
func (event TaskArtifactUpdateEvent) IsFinal() bool  { return false }

/*
Event is anything broadcast to a task's subscribers.
*/
type Event interface {
	TaskID() string
	IsFinal() bool
}

// TaskSendParams represents the parameters for sending a task message
type TaskSendParams struct {
	// ID is the unique identifier for the task being initiated or continued
	ID string `json:"id"`
	// SessionID is an optional identifier for the session this task belongs to
	SessionID string `json:"sessionId,omitempty"`
	// Message is the message content to send to the agent for processing
	Message Message `json:"message"`
	// PushNotification is optional push notification information for receiving notifications
	PushNotification *PushNotificationConfig `json:"pushNotification,omitempty"`
	// HistoryLength is an optional parameter to specify how much message history to include
	HistoryLength *int `json:"historyLength,omitempty"`
	// Metadata is optional metadata associated with sending this message
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams represents the base parameters for task ID-based operations
type TaskIDParams struct {
	// ID is the unique identifier of the task
	ID string `json:"id"`
	// Metadata is optional metadata to include with the operation
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams represents the parameters for querying task information
type TaskQueryParams struct {
	TaskIDParams
	// HistoryLength selects the embedded history: nil or 0 for none, a
	// positive value for the last N messages, a negative value for all.
	HistoryLength *int `json:"historyLength,omitempty"`
}

// PushNotificationConfig represents the configuration for push notifications
type PushNotificationConfig struct {
	URL   string  `json:"url"`
	Token *string `json:"token,omitempty"`
}

// TaskPushNotificationConfig represents the configuration for task-specific push notifications
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

func (task *Task) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("212")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	indent := "   "
	bullet := "│ "

	sb.WriteString(headerStyle.Render("Task Details") + "\n")
	sb.WriteString(bullet + labelStyle.Render("ID: ") + valueStyle.Render(task.ID) + "\n")

	if task.SessionID != "" {
		sb.WriteString(bullet + labelStyle.Render("Session ID: ") + valueStyle.Render(task.SessionID) + "\n")
	}

	sb.WriteString("\n" + sectionStyle.Render("Status") + "\n")
	sb.WriteString(bullet + labelStyle.Render("State: ") + valueStyle.Render(string(task.Status.State)) + "\n")

	if task.Status.Message != nil {
		sb.WriteString(bullet + labelStyle.Render("Message: ") + valueStyle.Render(task.Status.Message.String()) + "\n")
	}

	sb.WriteString(bullet + labelStyle.Render("Timestamp: ") + valueStyle.Render(task.Status.Timestamp.Format(time.RFC3339)) + "\n")

	if len(task.History) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("History") + "\n")

		for i, message := range task.History {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Message %d", i+1)) + "\n")
			sb.WriteString(bullet + indent + labelStyle.Render("Role: ") + valueStyle.Render(message.Role) + "\n")

			for _, part := range message.Parts {
				sb.WriteString(bullet + indent + labelStyle.Render("Content: ") + valueStyle.Render(part.Text) + "\n")
			}
		}
	}

	if len(task.Artifacts) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Artifacts") + "\n")

		for _, artifact := range task.Artifacts {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Artifact %d", artifact.Index)) + "\n")

			if artifact.Name != "" {
				sb.WriteString(bullet + indent + labelStyle.Render("Name: ") + valueStyle.Render(artifact.Name) + "\n")
			}

			if artifact.MimeType != "" {
				sb.WriteString(bullet + indent + labelStyle.Render("Type: ") + valueStyle.Render(artifact.MimeType) + "\n")
			}

			for j, part := range artifact.Parts {
				sb.WriteString(bullet + indent + labelStyle.Render(fmt.Sprintf("Part %d: ", j+1)) + valueStyle.Render(part.Text) + "\n")
			}
		}
	}

	if len(task.Metadata) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Metadata") + "\n")
		keys := make([]string, 0, len(task.Metadata))

		for k := range task.Metadata {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			sb.WriteString(bullet + labelStyle.Render(k+": ") + valueStyle.Render(fmt.Sprintf("%v", task.Metadata[k])) + "\n")
		}
	}

	return sb.String()
}
