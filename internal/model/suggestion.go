package model

// Suggestion status constants
const (
	SuggestionStatusNew      = "new"
	SuggestionStatusReviewed = "reviewed"
)

// Suggestion is user feedback submitted through the public endpoint
type Suggestion struct {
	BaseModel
	Email   string `gorm:"type:varchar(255)" json:"email"`
	Message string `gorm:"type:text;not null" json:"message"`
	Status  string `gorm:"type:enum('new','reviewed');default:'new'" json:"status"`
}

// TableName specifies the table name for Suggestion model
func (Suggestion) TableName() string {
	return "suggestions"
}
