package http

import "github.com/slichti/studio-platform-dev-sub010/internal/domain"

type ErrorResponse struct {
	Error string `json:"error"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type PresenceResponse struct {
	Users []domain.User `json:"users"`
}
