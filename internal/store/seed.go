package store

// DefaultConfiguration is installed on fresh documents and on documents that
// lost their configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Statuses: []Status{
			{ID: "todo", Label: "To do", Color: "#ffedd5", TextColor: "#9a3412"},
			{ID: "progress", Label: "In progress", Color: "#e9d5ff", TextColor: "#6b21a8"},
			{ID: "done", Label: "Done", Color: "#d1fae5", TextColor: "#065f46"},
		},
		Priorities: []Priority{
			{ID: "high", Label: "High"},
			{ID: "medium", Label: "Medium"},
			{ID: "low", Label: "Low"},
		},
		Categories:  []string{"design", "dev", "mtg"},
		Departments: DefaultDepartments(),
	}
}

func DefaultDepartments() []string {
	return []string{"Administration", "Development", "Sales", "IT"}
}

// DefaultDocument is what Load returns when nothing has been stored yet.
func DefaultDocument() *Document {
	cfg := DefaultConfiguration()
	return &Document{
		CurrentUser: &CurrentUser{ID: "admin", Name: "Administrator", Role: RoleAdmin},
		Config:      &cfg,
		Projects: []Project{
			{ID: "prj-1", Name: "Test", Dept: "Administration", Icon: "ph-folder"},
		},
		Members: []Member{
			{ID: "admin", Name: "Administrator", Dept: "Administration", Role: RoleAdmin, Password: "admin"},
		},
		Issues:        []Issue{},
		Wikis:         []Wiki{},
		Notifications: []Notification{},
	}
}
