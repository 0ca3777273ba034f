package model

// UserProperty is one stored user preference row.
type UserProperty struct {
	User     uint   `gorm:"column:up_user;index:up_user_property,unique" json:"user"`
	Property string `gorm:"column:up_property;size:255;index:up_user_property,unique;index" json:"property"`
	Value    string `gorm:"column:up_value;type:text" json:"value"`
}

func (UserProperty) TableName() string { return "user_properties" }
