package models

type AttachmentType string

const (
	AttachmentImage AttachmentType = "IMAGE"
	AttachmentVideo AttachmentType = "VIDEO"
	AttachmentFile  AttachmentType = "FILE"
)

// Attachment is a file attached to a message. Storage itself is external;
// only the URL and metadata are recorded here.
type Attachment struct {
	ID        int64          `json:"id,string"`
	MessageID int64          `json:"message_id,string"`
	URL       string         `json:"url"`
	Type      AttachmentType `json:"type"`
	FileName  *string        `json:"file_name,omitempty"`
	FileSize  *int64         `json:"file_size,omitempty"`
}
