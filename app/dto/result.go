package dto

import (
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
)

type LoginResult struct {
	User         *entity.User
	AccessToken  string
	RefreshToken string
}

type ExportResult struct {
	User           *entity.User
	ActiveSessions int64
	ExportDate     time.Time
}
