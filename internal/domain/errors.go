package domain

import "errors"

var (
	ErrMissingRoomID   = errors.New("missing roomId")
	ErrMissingTenant   = errors.New("missing tenantId or tenantSlug")
	ErrMissingUserID   = errors.New("missing userId")
	ErrMissingKey      = errors.New("missing key")
	ErrInvalidLimit    = errors.New("limit must be a positive integer")
	ErrInvalidWindow   = errors.New("window must be a positive integer")
	ErrInvalidCost     = errors.New("cost must be a positive integer")
	ErrMessageNotFound = errors.New("message not found")
)
