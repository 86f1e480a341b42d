package backlog

import "encoding/json"

// Space is the Backlog space the API key belongs to.
type Space struct {
	SpaceKey           string `json:"spaceKey"`
	Name               string `json:"name"`
	OwnerID            int    `json:"ownerId"`
	Lang               string `json:"lang"`
	Timezone           string `json:"timezone"`
	ReportSendTime     string `json:"reportSendTime"`
	TextFormattingRule string `json:"textFormattingRule"`
	Created            string `json:"created"`
	Updated            string `json:"updated"`
}

// User is a Backlog account.
type User struct {
	ID          int    `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	RoleType    int    `json:"roleType"`
	Lang        string `json:"lang,omitempty"`
	MailAddress string `json:"mailAddress,omitempty"`
}

// Project is a Backlog project.
type Project struct {
	ID                                int    `json:"id"`
	ProjectKey                        string `json:"projectKey"`
	Name                              string `json:"name"`
	ChartEnabled                      bool   `json:"chartEnabled"`
	SubtaskingEnabled                 bool   `json:"subtaskingEnabled"`
	ProjectLeaderCanEditProjectLeader bool   `json:"projectLeaderCanEditProjectLeader"`
	UseWikiTreeView                   bool   `json:"useWikiTreeView"`
	TextFormattingRule                string `json:"textFormattingRule"`
	Archived                          bool   `json:"archived"`
	DisplayOrder                      int    `json:"displayOrder"`
	UseDevAttributes                  bool   `json:"useDevAttributes"`
}

// IDName is the nested {id, name} shape Backlog uses for statuses,
// priorities, categories and similar references.
type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IssueType is an issue classification within a project.
type IssueType struct {
	ID           int    `json:"id"`
	ProjectID    int    `json:"projectId"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	DisplayOrder int    `json:"displayOrder"`
}

// Issue is a Backlog issue.
type Issue struct {
	ID             int               `json:"id"`
	ProjectID      int               `json:"projectId"`
	IssueKey       string            `json:"issueKey"`
	KeyID          int               `json:"keyId"`
	IssueType      *IssueType        `json:"issueType,omitempty"`
	Summary        string            `json:"summary"`
	Description    string            `json:"description"`
	Resolution     *IDName           `json:"resolution,omitempty"`
	Priority       *IDName           `json:"priority,omitempty"`
	Status         *IDName           `json:"status,omitempty"`
	Assignee       *User             `json:"assignee,omitempty"`
	Category       []IDName          `json:"category,omitempty"`
	Versions       []IDName          `json:"versions,omitempty"`
	Milestone      []IDName          `json:"milestone,omitempty"`
	StartDate      *string           `json:"startDate,omitempty"`
	DueDate        *string           `json:"dueDate,omitempty"`
	EstimatedHours *float64          `json:"estimatedHours,omitempty"`
	ActualHours    *float64          `json:"actualHours,omitempty"`
	ParentIssueID  *int              `json:"parentIssueId,omitempty"`
	CreatedUser    *User             `json:"createdUser,omitempty"`
	Created        string            `json:"created"`
	UpdatedUser    *User             `json:"updatedUser,omitempty"`
	Updated        string            `json:"updated"`
	CustomFields   []json.RawMessage `json:"customFields,omitempty"`
}

// Count is the response of the count endpoints.
type Count struct {
	Count int `json:"count"`
}

// Version is a version or milestone of a project.
type Version struct {
	ID             int     `json:"id"`
	ProjectID      int     `json:"projectId"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	StartDate      *string `json:"startDate,omitempty"`
	ReleaseDueDate *string `json:"releaseDueDate,omitempty"`
	Archived       bool    `json:"archived"`
	DisplayOrder   int     `json:"displayOrder"`
}

// Tag is a label attached to documents and wikis.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Document is a Backlog document.
type Document struct {
	ID          string `json:"id"`
	ProjectID   int    `json:"projectId"`
	Title       string `json:"title"`
	Plain       string `json:"plain,omitempty"`
	JSON        string `json:"json,omitempty"`
	StatusID    int    `json:"statusId"`
	Emoji       string `json:"emoji,omitempty"`
	Tags        []Tag  `json:"tags,omitempty"`
	CreatedUser *User  `json:"createdUser,omitempty"`
	Created     string `json:"created"`
	UpdatedUser *User  `json:"updatedUser,omitempty"`
	Updated     string `json:"updated"`
}

// DocumentTreeNode is one node of a project's document tree.
type DocumentTreeNode struct {
	ID       string             `json:"id"`
	Name     string             `json:"name,omitempty"`
	Emoji    string             `json:"emoji,omitempty"`
	Children []DocumentTreeNode `json:"children,omitempty"`
}

// DocumentTree is the active and trashed document hierarchy of a project.
type DocumentTree struct {
	ProjectID  string           `json:"projectId"`
	ActiveTree DocumentTreeNode `json:"activeTree"`
	TrashTree  DocumentTreeNode `json:"trashTree"`
}

// Wiki is a Backlog wiki page.
type Wiki struct {
	ID          int    `json:"id"`
	ProjectID   int    `json:"projectId"`
	Name        string `json:"name"`
	Content     string `json:"content,omitempty"`
	Tags        []Tag  `json:"tags,omitempty"`
	CreatedUser *User  `json:"createdUser,omitempty"`
	Created     string `json:"created"`
	UpdatedUser *User  `json:"updatedUser,omitempty"`
	Updated     string `json:"updated"`
}

// WatchingListItem is one watched issue.
type WatchingListItem struct {
	ID                  int    `json:"id"`
	ResourceAlreadyRead bool   `json:"resourceAlreadyRead"`
	Note                string `json:"note"`
	Type                string `json:"type"`
	Issue               *Issue `json:"issue,omitempty"`
	LastContentUpdated  string `json:"lastContentUpdated,omitempty"`
	Created             string `json:"created"`
	Updated             string `json:"updated"`
}

// CustomField is a custom field definition of a project. Type-specific
// settings are kept raw.
type CustomField struct {
	ID                   int             `json:"id"`
	TypeID               int             `json:"typeId"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Required             bool            `json:"required"`
	ApplicableIssueTypes []int           `json:"applicableIssueTypes"`
	AllowAddItem         bool            `json:"allowAddItem,omitempty"`
	Items                json.RawMessage `json:"items,omitempty"`
}

// PullRequest is a Git pull request.
type PullRequest struct {
	ID           int     `json:"id"`
	ProjectID    int     `json:"projectId"`
	RepositoryID int     `json:"repositoryId"`
	Number       int     `json:"number"`
	Summary      string  `json:"summary"`
	Description  string  `json:"description"`
	Base         string  `json:"base"`
	Branch       string  `json:"branch"`
	Status       *IDName `json:"status,omitempty"`
	Assignee     *User   `json:"assignee,omitempty"`
	Issue        *Issue  `json:"issue,omitempty"`
	CreatedUser  *User   `json:"createdUser,omitempty"`
	Created      string  `json:"created"`
	UpdatedUser  *User   `json:"updatedUser,omitempty"`
	Updated      string  `json:"updated"`
}
