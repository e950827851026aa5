package models

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#6B7280"

// Category groups expenses. System defaults have no owner and are shared by
// every user.
type Category struct {
	Base
	UserID    *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Name      string  `gorm:"size:100;not null" json:"name"`
	Color     string  `gorm:"size:7;not null" json:"color"`
	IsDefault bool    `gorm:"not null" json:"is_default"`
}

// OwnedBy reports whether the category belongs to userID. Defaults are owned
// by nobody.
func (c *Category) OwnedBy(userID string) bool {
	return c.UserID != nil && *c.UserID == userID
}
