package github

// PullRequest is the fields of a pull request the reconciliation consumes.
type PullRequest struct {
	Number    int
	State     string // "open" or "closed"
	Draft     bool
	Title     string
	Body      string
	HeadRef   string
	BaseRef   string
	Author    string
	Assignees []string
	URL       string
}

// Comment is an issue comment body.
type Comment struct {
	Body string
}

// Commit carries the commit message and the GitHub logins attached to it.
type Commit struct {
	Message        string
	AuthorLogin    string
	CommitterLogin string
}

// User identifies a GitHub account.
type User struct {
	ID    int64
	Login string
}

// Review is a submitted (or pending) pull request review.
type Review struct {
	User  User
	State string // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", "PENDING", ...
}
