package model

// AnswerRequest selects an option in a running attempt. When Position is set
// the cursor moves there first.
type AnswerRequest struct {
	Position *int `json:"position" binding:"omitempty,min=0"`
	Option   *int `json:"option" binding:"required,min=0,max=3"`
}

// CursorRequest moves the cursor of a running attempt.
type CursorRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
}
