package model

import (
    "math"
    "time"
)

// IncidentType classifies what happened at a reported location.
type IncidentType string

const (
    IncidentAccident        IncidentType = "accident"
    IncidentFire            IncidentType = "fire"
    IncidentMedical         IncidentType = "medical"
    IncidentCrime           IncidentType = "crime"
    IncidentNaturalDisaster IncidentType = "natural_disaster"
    IncidentOther           IncidentType = "other"
)

// IncidentTypes lists every accepted incident type in display order.
var IncidentTypes = []IncidentType{
    IncidentAccident, IncidentFire, IncidentMedical,
    IncidentCrime, IncidentNaturalDisaster, IncidentOther,
}

// IsValid reports whether t is one of the known incident types.
func (t IncidentType) IsValid() bool {
    for _, v := range IncidentTypes {
        if v == t {
            return true
        }
    }
    return false
}

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
    StatusPending            ReportStatus = "pending"
    StatusUnderInvestigation ReportStatus = "under_investigation"
    StatusResolved           ReportStatus = "resolved"
    StatusRejected           ReportStatus = "rejected"
)

// Statuses lists every report status in lifecycle order.
var Statuses = []ReportStatus{
    StatusPending, StatusUnderInvestigation, StatusResolved, StatusRejected,
}

// IsValid reports whether s is one of the known statuses.
func (s ReportStatus) IsValid() bool {
    for _, v := range Statuses {
        if v == s {
            return true
        }
    }
    return false
}

// Report mirrors a row of the `reports` table.  Content fields belong to
// the reporter; Status is only ever written by the lifecycle engine.
type Report struct {
    ID           string
    Title        string
    Description  string
    IncidentType IncidentType
    Latitude     float64
    Longitude    float64
    Address      string // empty when unset
    Status       ReportStatus
    UserID       string
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

// ReportFilter narrows a report listing. Zero values mean "any".
type ReportFilter struct {
    Status       ReportStatus
    IncidentType IncidentType
    UserID       string
}

// Page is a 1-based page request.
type Page struct {
    Number int
    Size   int
}

const (
    DefaultPageSize = 20
    MaxPageSize     = 100
)

// Normalize clamps the page number to >= 1 and the size to [1, MaxPageSize].
// A zero size falls back to DefaultPageSize.
func (p Page) Normalize() Page {
    if p.Number < 1 {
        p.Number = 1
    }
    if p.Size == 0 {
        p.Size = DefaultPageSize
    }
    if p.Size < 1 {
        p.Size = 1
    }
    if p.Size > MaxPageSize {
        p.Size = MaxPageSize
    }
    if maxNumber := math.MaxInt / p.Size; p.Number > maxNumber {
        p.Number = maxNumber
    }
    return p
}

// Offset returns the row offset of the page. p must be normalized.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// PastEnd reports whether p starts at or after the last of total rows.
// It never multiplies, so huge page numbers cannot overflow.
func (p Page) PastEnd(total int) bool {
    p = p.Normalize()
    return total <= 0 || p.Number > (total+p.Size-1)/p.Size
}

// StatusCounts holds per-status report totals.
type StatusCounts map[ReportStatus]int

// UserReportStats summarises one reporter's submissions.
type UserReportStats struct {
    Total    int
    ByStatus StatusCounts
}

// PlatformStats summarises the whole platform for administrators.
type PlatformStats struct {
    TotalUsers   int
    TotalReports int
    ByStatus     StatusCounts
    ByType       map[IncidentType]int
}
