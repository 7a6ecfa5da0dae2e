package api

import (
	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/scheduler"
	"github.com/partsform/syncengine/internal/validation"
)

// IntegrationRequest is the create/update request body for
// /integrations. It mirrors entity.Integration's mutable fields —
// status/lastSync/stats/id/timestamps are server-owned.
type IntegrationRequest struct {
	Name     string                 `json:"name"`
	Kind     entity.IntegrationKind `json:"kind"`
	FTP      *entity.FTPConfig      `json:"ftp,omitempty"`
	API      *entity.APIConfig      `json:"api,omitempty"`
	Schedule entity.Schedule        `json:"schedule"`
	Options  entity.Options         `json:"options"`
}

// validateIntegrationRequest checks req against the config-invalid
// rules spec.md §7 says must be "surfaced immediately on create/update;
// never retried" — a bad cron, a missing host/base-url, or an unknown
// auth kind never reaches the repository.
func validateIntegrationRequest(req *IntegrationRequest) *validation.Result {
	result := validation.NewResult()

	if req.Name == "" {
		result.AddErrorWithContext(validation.CodeMissingField, "name is required", map[string]interface{}{"field": "name"})
	}

	switch req.Kind {
	case entity.IntegrationKindFTP:
		if req.FTP == nil || req.FTP.Host == "" {
			result.AddErrorWithContext(validation.CodeMissingField, "ftp.host is required when kind is FTP", map[string]interface{}{"field": "ftp.host"})
		}
	case entity.IntegrationKindHTTPAPI, entity.IntegrationKindSpreadsheetFeed:
		if req.API == nil || req.API.BaseURL == "" {
			result.AddErrorWithContext(validation.CodeMissingField, "api.baseUrl is required for HTTP-API/SpreadsheetFeed kinds", map[string]interface{}{"field": "api.baseUrl"})
			break
		}
		switch req.API.AuthType {
		case entity.AuthTypeNone, entity.AuthTypeAPIKey, entity.AuthTypeBasic, entity.AuthTypeBearer, entity.AuthTypeOAuth2ClientCredentials:
		default:
			result.AddErrorWithContext(validation.CodeInvalidAuth, "api.authType is not a recognized auth kind", map[string]interface{}{"value": req.API.AuthType})
		}
		switch req.API.Pagination.Kind {
		case entity.PaginationNone, entity.PaginationPage, entity.PaginationOffset, entity.PaginationCursor, entity.PaginationLinkHeader:
		default:
			result.AddErrorWithContext(validation.CodeInvalidPagination, "api.pagination.kind is not a recognized pagination strategy", map[string]interface{}{"value": req.API.Pagination.Kind})
		}
	default:
		result.AddErrorWithContext(validation.CodeInvalidKind, "kind must be one of FTP, HTTP-API, SpreadsheetFeed", map[string]interface{}{"value": req.Kind})
	}

	if req.Schedule.Enabled {
		if err := scheduler.ValidateSchedule(req.Schedule); err != nil {
			result.AddErrorWithContext(validation.CodeInvalidSchedule, err.Error(), map[string]interface{}{"frequency": req.Schedule.Frequency})
		}
	}

	return result
}

func (req *IntegrationRequest) toIntegration(createdBy entity.UserID) *entity.Integration {
	now := entity.Now()
	return &entity.Integration{
		Name:      req.Name,
		Kind:      req.Kind,
		FTP:       req.FTP,
		API:       req.API,
		Schedule:  req.Schedule,
		Options:   req.Options,
		Status:    entity.IntegrationStatusActive,
		CreatedBy: createdBy,
		UpdatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// applyTo overwrites integration's mutable fields from req, leaving
// id/status/lastSync/stats/createdBy/createdAt untouched.
func (req *IntegrationRequest) applyTo(integration *entity.Integration, updatedBy entity.UserID) {
	integration.Name = req.Name
	integration.Kind = req.Kind
	integration.FTP = req.FTP
	integration.API = req.API
	integration.Schedule = req.Schedule
	integration.Options = req.Options
	integration.UpdatedBy = updatedBy
	integration.UpdatedAt = entity.Now()
}
