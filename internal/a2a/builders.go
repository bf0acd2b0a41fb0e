package a2a

import "github.com/google/uuid"

// This file groups the small factory helpers that build wire payloads
// by hand rather than going through Skill/Registry - cross-agent
// delegation requests, ad-hoc messages, artifact previews.

// Part is one unit of a Message's content: a text part, a data part
// carrying an arbitrary JSON-ish payload, or a file part referencing
// bytes by name/MIME type rather than inlining them.
type Part struct {
	Type     string                 `json:"type"` // "text" | "data" | "file"
	Text     string                 `json:"text,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	FileName string                 `json:"file_name,omitempty"`
	MimeType string                 `json:"mime_type,omitempty"`
	FileURI  string                 `json:"file_uri,omitempty"`
}

// NewTextPart wraps plain text as a Part.
func NewTextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// NewDataPart wraps a structured payload as a Part.
func NewDataPart(data map[string]interface{}) Part {
	return Part{Type: "data", Data: data}
}

// NewFilePart references a file by name, MIME type, and URI rather than
// inlining its bytes - the Message/Artifact envelope carries a pointer,
// not the payload itself.
func NewFilePart(fileName, mimeType, fileURI string) Part {
	return Part{Type: "file", FileName: fileName, MimeType: mimeType, FileURI: fileURI}
}

// Message is an application-level unit of communication between agents,
// built up from one or more Parts.
type Message struct {
	ID      string                 `json:"id"`
	Role    string                 `json:"role"` // "agent" | "user"
	Parts   []Part                 `json:"parts"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// NewMessage builds a Message with a fresh ID from the given role and parts.
func NewMessage(role string, parts ...Part) Message {
	return Message{ID: uuid.NewString(), Role: role, Parts: parts}
}

// Artifact is a named, versioned output produced alongside a task result
// - a file, a rendered report, anything too large or binary for Parts.
type Artifact struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parts       []Part                 `json:"parts"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewArtifact builds an Artifact with a fresh ID.
func NewArtifact(name, description string, parts ...Part) Artifact {
	return Artifact{ID: uuid.NewString(), Name: name, Description: description, Parts: parts}
}

// NewTaskFrame builds an outbound task request frame, used by
// DirectoryClient.RequestTask for cross-agent delegation.
func NewTaskFrame(skill string, input map[string]interface{}) TaskFrame {
	return TaskFrame{
		Type:   FrameTypeTask,
		TaskID: uuid.NewString(),
		Content: TaskContent{
			Skill: skill,
			Input: input,
		},
	}
}
