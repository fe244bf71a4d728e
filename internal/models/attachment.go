package models

import "time"

type Attachment struct {
	ID          string
	UserID      string
	Bucket      string
	ObjectKey   string
	FileName    string
	ContentType string
	Format      string
	SizeBytes   int64
	Checksum    []byte
	CreatedAt   time.Time
}

type ResponseMessage struct {
	Code      string
	Text      string
	UpdatedAt time.Time
}
