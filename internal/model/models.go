// internal/model/models.go
package model

import (
	"time"
)

// ProviderGitHub is the only provider integrations are created for today.
const ProviderGitHub = "github"

// SyncMode selects how much upstream history a pass requests.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// AccountProfile is the snapshot of the upstream account taken at connect time.
type AccountProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
}

// Integration is one OAuth-connected upstream account owned by a local user.
type Integration struct {
	ID          int64
	UserID      string
	Provider    string
	AccessToken string
	Profile     AccountProfile
	Scopes      []string
	ConnectedAt time.Time
	LastSyncAt  *time.Time
	IsActive    bool
}

// Actor is the compact user sub-record embedded in pull requests and issues.
type Actor struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Label is a label attached to a pull request or issue.
type Label struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Milestone is the milestone sub-record of a pull request or issue.
type Milestone struct {
	ID     int64      `json:"id"`
	Number int        `json:"number"`
	Title  string     `json:"title"`
	State  string     `json:"state"`
	DueOn  *time.Time `json:"due_on,omitempty"`
}

// GitRef is the head or base of a pull request.
type GitRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// SyncReport is the outcome of one sync pass.
type SyncReport struct {
	SyncID        string    `json:"syncId"`
	Mode          SyncMode  `json:"mode"`
	Organizations int       `json:"organizations"`
	Repositories  int       `json:"repositories"`
	Commits       int       `json:"commits"`
	PullRequests  int       `json:"pullRequests"`
	Issues        int       `json:"issues"`
	Users         int       `json:"users"`
	Errors        []string  `json:"errors"`
	Skipped       []string  `json:"skipped"`
	SyncedAt      time.Time `json:"syncedAt"`
}

// SyncStatus is the polling view of an integration's mirrored data.
type SyncStatus struct {
	LastSyncAt         *time.Time `json:"lastSyncAt"`
	TotalOrganizations int64      `json:"totalOrganizations"`
	TotalRepositories  int64      `json:"totalRepositories"`
	TotalCommits       int64      `json:"totalCommits"`
	TotalPullRequests  int64      `json:"totalPullRequests"`
	TotalIssues        int64      `json:"totalIssues"`
	TotalUsers         int64      `json:"totalUsers"`
	State              string     `json:"status"`
}

const (
	SyncStateCompleted = "completed"
	SyncStateSyncing   = "syncing"
)
