// Package facematch decides enrolment and login outcomes from face encodings.
package facematch

// RegisterStatus is the outcome of an enrolment attempt
type RegisterStatus string

const (
	StatusRegistered RegisterStatus = "registered"       // New user stored
	StatusDuplicate  RegisterStatus = "duplicate"        // Face already enrolled, nothing stored
	StatusNoFaceReg  RegisterStatus = "no_face_detected" // Frame had no face, nothing stored
)

// AuthStatus is the outcome of a login attempt
type AuthStatus string

const (
	StatusMatched     AuthStatus = "matched"
	StatusNoMatch     AuthStatus = "no_match"
	StatusNoFaceLogin AuthStatus = "no_face_detected"
)

// RegisterResult carries the enrolment outcome. UserID is set for
// StatusRegistered (the new user) and StatusDuplicate (the existing one).
type RegisterResult struct {
	Status   RegisterStatus
	UserID   string
	Distance float64
}

// AuthResult carries the login outcome. UserID is set only for StatusMatched.
type AuthResult struct {
	Status   AuthStatus
	UserID   string
	Distance float64
}
