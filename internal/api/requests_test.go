package api

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/validation"
)

func TestValidateIntegrationRequestMissingName(t *testing.T) {
	req := &IntegrationRequest{Kind: entity.IntegrationKindFTP, FTP: &entity.FTPConfig{Host: "ftp.example.com"}}
	result := validateIntegrationRequest(req)
	require.True(t, result.HasErrors())
	assert.NotEmpty(t, result.MessagesByCode(validation.CodeMissingField))
}

func TestValidateIntegrationRequestFTPMissingHost(t *testing.T) {
	req := &IntegrationRequest{Name: "Acme", Kind: entity.IntegrationKindFTP}
	result := validateIntegrationRequest(req)
	assert.True(t, result.HasErrors())
}

func TestValidateIntegrationRequestAPIMissingBaseURL(t *testing.T) {
	req := &IntegrationRequest{Name: "Acme", Kind: entity.IntegrationKindHTTPAPI}
	result := validateIntegrationRequest(req)
	assert.True(t, result.HasErrors())
}

func TestValidateIntegrationRequestInvalidAuthType(t *testing.T) {
	req := &IntegrationRequest{
		Name: "Acme",
		Kind: entity.IntegrationKindHTTPAPI,
		API:  &entity.APIConfig{BaseURL: "https://example.com", AuthType: entity.AuthType("carrier-pigeon")},
	}
	result := validateIntegrationRequest(req)
	assert.NotEmpty(t, result.MessagesByCode(validation.CodeInvalidAuth))
}

func TestValidateIntegrationRequestInvalidPagination(t *testing.T) {
	req := &IntegrationRequest{
		Name: "Acme",
		Kind: entity.IntegrationKindHTTPAPI,
		API: &entity.APIConfig{
			BaseURL:    "https://example.com",
			Pagination: entity.PaginationSpec{Kind: entity.PaginationKind("smoke-signal")},
		},
	}
	result := validateIntegrationRequest(req)
	assert.NotEmpty(t, result.MessagesByCode(validation.CodeInvalidPagination))
}

func TestValidateIntegrationRequestUnknownKind(t *testing.T) {
	req := &IntegrationRequest{Name: "Acme", Kind: entity.IntegrationKind("smoke-signal")}
	result := validateIntegrationRequest(req)
	assert.NotEmpty(t, result.MessagesByCode(validation.CodeInvalidKind))
}

func TestValidateIntegrationRequestInvalidSchedule(t *testing.T) {
	req := &IntegrationRequest{
		Name:     "Acme",
		Kind:     entity.IntegrationKindFTP,
		FTP:      &entity.FTPConfig{Host: "ftp.example.com"},
		Schedule: entity.Schedule{Enabled: true, Frequency: entity.FrequencyEveryNHours, EveryNHours: 5},
	}
	result := validateIntegrationRequest(req)
	assert.NotEmpty(t, result.MessagesByCode(validation.CodeInvalidSchedule))
}

func TestValidateIntegrationRequestValidPasses(t *testing.T) {
	req := &IntegrationRequest{
		Name:     "Acme",
		Kind:     entity.IntegrationKindFTP,
		FTP:      &entity.FTPConfig{Host: "ftp.example.com"},
		Schedule: entity.Schedule{Enabled: true, Frequency: entity.FrequencyHourly},
	}
	result := validateIntegrationRequest(req)
	assert.False(t, result.HasErrors())
}

func TestToIntegrationSetsServerOwnedFields(t *testing.T) {
	req := &IntegrationRequest{Name: "Acme", Kind: entity.IntegrationKindFTP, FTP: &entity.FTPConfig{Host: "ftp.example.com"}}
	userID := uuid.New()

	integration := req.toIntegration(userID)
	assert.Equal(t, "Acme", integration.Name)
	assert.Equal(t, entity.IntegrationStatusActive, integration.Status)
	assert.Equal(t, userID, integration.CreatedBy)
	assert.Equal(t, userID, integration.UpdatedBy)
	assert.False(t, integration.CreatedAt.IsZero())
}

func TestApplyToPreservesIdentityFields(t *testing.T) {
	id := uuid.New()
	createdAt := entity.Now()
	integration := &entity.Integration{
		ID:        id,
		Name:      "Old Name",
		Status:    entity.IntegrationStatusError,
		CreatedAt: createdAt,
	}

	req := &IntegrationRequest{Name: "New Name", Kind: entity.IntegrationKindFTP, FTP: &entity.FTPConfig{Host: "ftp.example.com"}}
	req.applyTo(integration, uuid.New())

	assert.Equal(t, id, integration.ID)
	assert.Equal(t, "New Name", integration.Name)
	assert.Equal(t, entity.IntegrationStatusError, integration.Status)
	assert.Equal(t, createdAt, integration.CreatedAt)
}
