package model

import (
	"errors"
	"fmt"
	"strings"
)

// MaxAttachmentBytes is the ceiling for a staged file payload.
const MaxAttachmentBytes = 5 << 20

var (
	ErrPayloadTooLarge   = errors.New("attachment exceeds size limit")
	ErrAttachmentInvalid = errors.New("attachment is invalid")
)

type AttachmentKind string

const (
	AttachmentFile AttachmentKind = "file"
	AttachmentLink AttachmentKind = "link"
)

type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	Name     string         `json:"name"`
	MimeType string         `json:"mime_type,omitempty"`
	Data     []byte         `json:"-"`
	URL      string         `json:"url,omitempty"`
}

func NewFileAttachment(name, mimeType string, data []byte) Attachment {
	return Attachment{Kind: AttachmentFile, Name: name, MimeType: mimeType, Data: data}
}

func NewLinkAttachment(url string) Attachment {
	url = strings.TrimSpace(url)
	return Attachment{Kind: AttachmentLink, Name: url, URL: url}
}

// Validate checks the attachment against the given ceiling (MaxAttachmentBytes
// when limit <= 0).
func (a Attachment) Validate(limit int) error {
	if limit <= 0 {
		limit = MaxAttachmentBytes
	}
	switch a.Kind {
	case AttachmentFile:
		if len(a.Data) == 0 {
			return fmt.Errorf("%w: empty file", ErrAttachmentInvalid)
		}
		if len(a.Data) > limit {
			return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(a.Data), limit)
		}
		if strings.TrimSpace(a.MimeType) == "" {
			return fmt.Errorf("%w: missing mime type", ErrAttachmentInvalid)
		}
	case AttachmentLink:
		if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
			return fmt.Errorf("%w: link must be http(s)", ErrAttachmentInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrAttachmentInvalid, a.Kind)
	}
	return nil
}
