package store

import "time"

type User struct {
	ID          string
	Email       string
	FullName    string
	AvatarURL   string
	// PasswordHash is empty for OAuth-only accounts.
	PasswordHash          string
	Provider              string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
}

type Workspace struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

type Board struct {
	ID          string
	WorkspaceID string
	Name        string
	CreatedBy   string
	CreatedAt   time.Time
}

// Membership is one (scope, user, role) row of either membership table.
type Membership struct {
	ScopeID string
	UserID  string
	Role    string
}

// MemberInfo is a membership joined with the user's profile, as
// returned by the member-listing endpoints.
type MemberInfo struct {
	UserID    string
	Email     string
	FullName  string
	AvatarURL string
	Role      string
}

// Kind selects one of the four sibling-ordered tables. All four share
// the same shape (id, parent reference, display name, position), so the
// store drives them through one code path.
type Kind string

const (
	KindList Kind = "list"
	KindTask Kind = "task"
	KindTodo Kind = "todo"
	KindItem Kind = "item"
)

// Orderable is a row of any of the four sibling-ordered tables. Fields
// that only exist for one kind (task description and creator) are blank
// for the others.
type Orderable struct {
	ID          string
	ParentID    string
	Name        string
	Description string
	CreatedBy   string
	Position    float64
	CreatedAt   time.Time
}

type kindSpec struct {
	table     string
	parentCol string
	nameCol   string
	// tasks carry description and created_by on top of the shared shape
	extended bool
}

var kinds = map[Kind]kindSpec{
	KindList: {table: "lists", parentCol: "board_id", nameCol: "name"},
	KindTask: {table: "tasks", parentCol: "list_id", nameCol: "title", extended: true},
	KindTodo: {table: "todos", parentCol: "task_id", nameCol: "title"},
	KindItem: {table: "items", parentCol: "todo_id", nameCol: "title"},
}
