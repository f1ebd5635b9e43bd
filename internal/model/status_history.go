package model

import "time"

// MaxCommentLength bounds the optional comment attached to a transition.
const MaxCommentLength = 500

// StatusHistory is one append-only entry of a report's transition ledger.
// Seq is assigned by the database and breaks ties between entries written
// within the same timestamp.
type StatusHistory struct {
    ID          string
    Seq         int64
    ReportID    string
    OldStatus   ReportStatus
    NewStatus   ReportStatus
    Comment     string
    ChangedByID string
    ChangedAt   time.Time
}
