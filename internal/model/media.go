package model

import "time"

// MediaType distinguishes image and video attachments.
type MediaType string

const (
    MediaImage MediaType = "image"
    MediaVideo MediaType = "video"
)

func (t MediaType) IsValid() bool { return t == MediaImage || t == MediaVideo }

// Media is a file attached to a report (`media` table).  FilePath is the
// path relative to the upload root.
type Media struct {
    ID        string
    Filename  string
    FilePath  string
    MediaType MediaType
    FileSize  int64
    MimeType  string
    ReportID  string
    CreatedAt time.Time
}
