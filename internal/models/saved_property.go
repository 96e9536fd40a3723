package models

import "time"

// SavedProperty is a persisted parcel with its assigned display number.
// Property is only populated when details were requested.
type SavedProperty struct {
	CreatedAt  time.Time `json:"createdAt"`
	UserNumber *string   `json:"userNumber,omitempty"`
	Property   *Property `json:"property,omitempty"`
	ID         int64     `json:"id"`
	PropertyID int64     `json:"propertyId"`
}

// DisplayNumber returns the assigned number or "".
func (s *SavedProperty) DisplayNumber() string {
	if s == nil || s.UserNumber == nil {
		return ""
	}
	return *s.UserNumber
}
