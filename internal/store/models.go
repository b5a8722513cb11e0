package store

import "time"

// Document is the root aggregate persisted as one JSON value.
type Document struct {
	CurrentUser   *CurrentUser   `json:"currentUser,omitempty"`
	Config        *Configuration `json:"config"`
	Projects      []Project      `json:"projects"`
	Members       []Member       `json:"members"`
	Issues        []Issue        `json:"issues"`
	Wikis         []Wiki         `json:"wikis"`
	Notifications []Notification `json:"notifications"`
}

type CurrentUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Status struct {
	ID        string `json:"id" validate:"required"`
	Label     string `json:"label" validate:"required"`
	Color     string `json:"color"`
	TextColor string `json:"textColor"`
}

type Priority struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label" validate:"required"`
}

// Configuration holds workflow definitions. A nil Departments slice means the
// document predates departments.
type Configuration struct {
	Statuses    []Status   `json:"statuses" validate:"min=1,unique=ID,dive"`
	Priorities  []Priority `json:"priorities" validate:"unique=ID,dive"`
	Categories  []string   `json:"categories" validate:"unique,dive,required"`
	Departments []string   `json:"departments" validate:"omitempty,unique,dive,required"`
}

// Project overrides are presence-significant: nil means "use the global
// definition", a pointer to an empty slice is an explicit empty override.
type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Icon       string    `json:"icon,omitempty"`
	Dept       string    `json:"dept,omitempty"`
	Members    []string  `json:"members"`
	ManagerID  string    `json:"managerId,omitempty"`
	Statuses   *[]Status `json:"statuses,omitempty"`
	Categories *[]string `json:"categories,omitempty"`
}

// HasMember reports whether memberID is listed in the project's members.
func (p Project) HasMember(memberID string) bool {
	for _, id := range p.Members {
		if id == memberID {
			return true
		}
	}
	return false
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Dept     string `json:"dept"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Icon     string `json:"icon,omitempty"`
}

func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Reactions maps an emoji to the member ids that reacted, in reaction order.
type Reactions map[string][]string

// Clone returns a deep copy so callers can mutate without aliasing the stored map.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

type Issue struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	ProjectID string         `json:"projectId"`
	Title     string         `json:"title"`
	Desc      string         `json:"desc"`
	Status    string         `json:"status"`
	Priority  string         `json:"priority"`
	Category  string         `json:"category"`
	Assignee  string         `json:"assignee"`
	StartDate string         `json:"startDate"`
	DueDate   string         `json:"dueDate"`
	CreatedAt string         `json:"createdAt"`
	Reactions Reactions      `json:"reactions"`
	Comments  []Comment      `json:"comments"`
	History   []HistoryEntry `json:"history"`
}

// DisplayKey is the user-facing label; legacy issues without a key show their id.
func (i Issue) DisplayKey() string {
	if i.Key != "" {
		return i.Key
	}
	return i.ID
}

type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Date      string    `json:"date"`
	Reactions Reactions `json:"reactions,omitempty"`
	Changes   []string  `json:"changes"`
}

// SystemActor is recorded as the author of history entries with no caller.
const SystemActor = "system"

type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

type HistoryEntry struct {
	UpdatedAt string        `json:"updatedAt"`
	UpdatedBy string        `json:"updatedBy"`
	Changes   []FieldChange `json:"changes"`
}

type Wiki struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Author    string    `json:"author"`
	CreatedAt string    `json:"createdAt"`
	Reactions Reactions `json:"reactions,omitempty"`
}

const (
	NotificationMention  = "mention"
	NotificationComment  = "comment"
	NotificationReaction = "reaction"
)

type Link struct {
	Page string `json:"page"`
	ID   string `json:"id"`
}

type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    Link   `json:"link"`
	Read    bool   `json:"read"`
	Date    string `json:"date"`
}

// Credentials is the remembered-login blob stored under its own key.
type Credentials struct {
	ID   string `json:"id"`
	Pass string `json:"pass"`
}

// Timestamp formats t the way the stored document expects (ISO-8601, UTC, millis).
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
