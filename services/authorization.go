package services

import (
	"errors"

	"github.com/anjiri1684/exam_center/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorizeStaff resolves the caller and checks that they hold one of the
// required roles. An empty role list admits any active staff member.
func AuthorizeStaff(db *gorm.DB, staffID uuid.UUID, roles ...string) (*models.StaffUser, error) {
	var staff models.StaffUser
	if err := db.First(&staff, "id = ?", staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Code: CodeForbidden, Message: "unknown staff account"}
		}
		return nil, err
	}
	if !staff.IsActive {
		return nil, &Error{Code: CodeForbidden, Message: "staff account is disabled"}
	}
	if len(roles) == 0 {
		return &staff, nil
	}
	for _, role := range roles {
		if staff.Role == role {
			return &staff, nil
		}
	}
	return nil, &Error{Code: CodeForbidden, Message: "Forbidden: role " + staff.Role + " may not perform this action"}
}
