package handler

import (
	"path"
	"time"

	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/service"
)

// UploadsPrefix is the URL path the stored media files are served under.
const UploadsPrefix = "/uploads"

// ----- JSON views -----

type userJSON struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// toUser renders an account. Contact details are only included when
// private is set, that is for the account holder themselves.
func toUser(u model.User, private bool) userJSON {
	out := userJSON{
		ID: u.ID, Username: u.Username, FullName: u.FullName,
		Role: u.Role, IsActive: u.IsActive, CreatedAt: u.CreatedAt,
	}
	if private {
		out.Email = u.Email
		out.PhoneNumber = u.PhoneNumber
	}
	return out
}

type locationJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type mediaJSON struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	FilePath  string          `json:"file_path"`
	URL       string          `json:"url"`
	MediaType model.MediaType `json:"media_type"`
	FileSize  int64           `json:"file_size"`
	MimeType  string          `json:"mime_type"`
	CreatedAt time.Time       `json:"created_at"`
}

func toMedia(m model.Media) mediaJSON {
	return mediaJSON{
		ID: m.ID, Filename: m.Filename, FilePath: m.FilePath,
		URL:       path.Join(UploadsPrefix, m.FilePath),
		MediaType: m.MediaType, FileSize: m.FileSize, MimeType: m.MimeType, CreatedAt: m.CreatedAt,
	}
}

func toMediaList(ms []model.Media) []mediaJSON {
	out := make([]mediaJSON, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMedia(m))
	}
	return out
}

type mediaGroupJSON struct {
	Images []mediaJSON `json:"images"`
	Videos []mediaJSON `json:"videos"`
}

type reportJSON struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	IncidentType model.IncidentType `json:"incident_type"`
	Location     locationJSON       `json:"location"`
	Status       model.ReportStatus `json:"status"`
	UserID       string             `json:"user_id"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	User         *userJSON          `json:"user,omitempty"`
	Media        mediaGroupJSON     `json:"media"`
}

func toReport(v service.ReportView) reportJSON {
	r := v.Report
	out := reportJSON{
		ID: r.ID, Title: r.Title, Description: r.Description, IncidentType: r.IncidentType,
		Location: locationJSON{Latitude: r.Latitude, Longitude: r.Longitude, Address: r.Address},
		Status:   r.Status, UserID: r.UserID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		Media: mediaGroupJSON{Images: toMediaList(v.Images), Videos: toMediaList(v.Videos)},
	}
	if v.Reporter != nil {
		u := toUser(*v.Reporter, false)
		out.User = &u
	}
	return out
}

func toReports(vs []service.ReportView) []reportJSON {
	out := make([]reportJSON, 0, len(vs))
	for _, v := range vs {
		out = append(out, toReport(v))
	}
	return out
}

type paginationJSON struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

func toPagination(p service.ReportPage) paginationJSON {
	pages := p.Pages()
	return paginationJSON{
		Page: p.Page, PerPage: p.PageSize, Total: p.Total, Pages: pages,
		HasNext: p.Page < pages, HasPrev: p.Page > 1,
	}
}

type historyJSON struct {
	ID        string             `json:"id"`
	Seq       int64              `json:"seq"`
	OldStatus model.ReportStatus `json:"old_status,omitempty"`
	NewStatus model.ReportStatus `json:"new_status"`
	Comment   string             `json:"comment"`
	ChangedAt time.Time          `json:"changed_at"`
	ChangedBy *userJSON          `json:"changed_by"`
}

func toHistory(h model.StatusHistory, users map[string]model.User) historyJSON {
	out := historyJSON{
		ID: h.ID, Seq: h.Seq, OldStatus: h.OldStatus, NewStatus: h.NewStatus,
		Comment: h.Comment, ChangedAt: h.ChangedAt,
	}
	if u, ok := users[h.ChangedByID]; ok {
		uj := toUser(u, false)
		out.ChangedBy = &uj
	}
	return out
}
