package session

// UserError is shown to the participant instead of ending the session.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}
