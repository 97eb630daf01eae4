package github

import "time"

// User represents a GitHub user or organization.
type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Repo represents a GitHub repository.
type Repo struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Description   string     `json:"description"`
	Private       bool       `json:"private"`
	Fork          bool       `json:"fork"`
	Archived      bool       `json:"archived"`
	DefaultBranch string     `json:"default_branch"`
	Language      string     `json:"language"`
	Stars         int        `json:"stargazers_count"`
	OpenIssues    int        `json:"open_issues_count"`
	PushedAt      *time.Time `json:"pushed_at"`
}

// Issue represents an open issue on a repository.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Labels    []Label   `json:"labels"`
	User      *User     `json:"user"`

	// PullRequest is set when the item is actually a pull request;
	// the issues endpoint mixes both.
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// Label is an issue label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Release represents a published release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}
