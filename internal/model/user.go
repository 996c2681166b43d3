package model

// Role distinguishes teacher and student accounts.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is a teacher or student account. Username is unique across both roles.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	Role         Role   `json:"role"`
}

// RegisterRequest is the payload for self-registration.
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=64"`
	FullName        string `json:"full_name" binding:"required,min=1,max=100"`
	Password        string `json:"password" binding:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Role            Role   `json:"role" binding:"required,oneof=teacher student"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateStudentRequest is the payload a teacher uses to add a student.
type CreateStudentRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateStudentRequest is the payload for editing a student.
// An empty password keeps the current one.
type UpdateStudentRequest struct {
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
}
