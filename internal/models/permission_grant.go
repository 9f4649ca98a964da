package models

import (
	"strings"
	"time"
)

// HTTPMethod is the method a grant applies to. MethodAll matches any method.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodAll     HTTPMethod = "ALL"
)

// HTTPMethods lists every value a grant may carry, in display order.
var HTTPMethods = []HTTPMethod{
	MethodGet, MethodPost, MethodPut, MethodPatch,
	MethodDelete, MethodHead, MethodOptions, MethodAll,
}

// ParseHTTPMethod uppercases m and reports whether it is a grantable value.
func ParseHTTPMethod(m string) (HTTPMethod, bool) {
	method := HTTPMethod(strings.ToUpper(strings.TrimSpace(m)))
	for _, known := range HTTPMethods {
		if method == known {
			return method, true
		}
	}
	return method, false
}

// PermissionGrant allows members of a group to call a URL with a method.
// URL is stored normalized: no leading slash, no locale prefix.
type PermissionGrant struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	GroupID     int64      `gorm:"not null;uniqueIndex:idx_group_url_method" json:"group_id"`
	URL         string     `gorm:"size:255;not null;index;uniqueIndex:idx_group_url_method" json:"url"`
	Method      HTTPMethod `gorm:"column:http_method;size:10;not null;index;uniqueIndex:idx_group_url_method" json:"http_method"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

func (PermissionGrant) TableName() string {
	return "group_url_permissions"
}

// PairID is the "{url}|{method}" key used by the admin selection API.
func (g PermissionGrant) PairID() string {
	return g.URL + "|" + string(g.Method)
}
