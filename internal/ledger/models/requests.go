package models

// RegisterAccountRequest is the self-registration payload. The address comes
// from the authenticated caller, never from the body.
type RegisterAccountRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// MarkAttendanceRequest records presence for subject on date.
type MarkAttendanceRequest struct {
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Present bool   `json:"present"`
}
