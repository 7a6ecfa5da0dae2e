package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidationResultCreation tests creating a new result
func TestValidationResultCreation(t *testing.T) {
	result := NewResult()

	assert.NotNil(t, result)
	assert.Empty(t, result.Messages)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
}

// TestAddError tests adding error messages
func TestAddError(t *testing.T) {
	result := NewResult()

	result.AddError(CodeMissingField, "partNumber column mapping is required")

	assert.Len(t, result.Messages, 1)
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.Equal(t, 1, result.ErrorCount())
}

// TestAddWarning tests adding warning messages
func TestAddWarning(t *testing.T) {
	result := NewResult()

	result.AddWarning(CodeInvalidSchedule, "dayOfMonth defaults to 1 when unset")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())   // Warnings don't make it invalid
	assert.True(t, result.CanImport()) // Can import with warnings
	assert.False(t, result.CanPromote())
	assert.Equal(t, 1, result.WarningCount())
}

// TestAddInfo tests adding info messages
func TestAddInfo(t *testing.T) {
	result := NewResult()

	result.AddInfo("INFO_CODE", "This is informational")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
	assert.Equal(t, 1, result.InfoCount())
}

// TestMultipleMessages tests collecting multiple messages
func TestMultipleMessages(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeInvalidKind, "kind must be one of FTP, HTTP-API, SpreadsheetFeed").
		AddWarning(CodeInvalidSchedule, "daysOfWeek defaults to [Monday]").
		AddInfo("INFO_CODE", "Request accepted")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
}

// TestMessagesByCode tests filtering messages by code
func TestMessagesByCode(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeMissingField, "host is required").
		AddError(CodeMissingField, "remotePath is required")

	messages := result.MessagesByCode(CodeMissingField)

	assert.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Equal(t, CodeMissingField, msg.Code)
	}
}

// TestMessagesBySeverity tests filtering messages by severity
func TestMessagesBySeverity(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeMissingField, "Error 1").
		AddError(CodeMissingField, "Error 2").
		AddWarning(CodeInvalidSchedule, "Warning 1").
		AddInfo("CODE", "Info 1")

	errors := result.MessagesBySeverity(SeverityError)
	warnings := result.MessagesBySeverity(SeverityWarning)
	infos := result.MessagesBySeverity(SeverityInfo)

	assert.Len(t, errors, 2)
	assert.Len(t, warnings, 1)
	assert.Len(t, infos, 1)
}

// TestHasErrorsAndWarnings tests flag methods
func TestHasErrorsAndWarnings(t *testing.T) {
	resultClean := NewResult()
	assert.False(t, resultClean.HasErrors())
	assert.False(t, resultClean.HasWarnings())

	resultWithError := NewResult().AddError("CODE", "Error")
	assert.True(t, resultWithError.HasErrors())
	assert.False(t, resultWithError.HasWarnings())

	resultWithWarning := NewResult().AddWarning("CODE", "Warning")
	assert.False(t, resultWithWarning.HasErrors())
	assert.True(t, resultWithWarning.HasWarnings())

	resultWithBoth := NewResult().
		AddError("ERR", "Error").
		AddWarning("WARN", "Warning")
	assert.True(t, resultWithBoth.HasErrors())
	assert.True(t, resultWithBoth.HasWarnings())
}

// TestWithContext tests messages with additional context
func TestWithContext(t *testing.T) {
	result := NewResult()

	context := map[string]interface{}{
		"field": "pagination.kind",
		"value": "unknown",
	}

	result.AddErrorWithContext(CodeInvalidPagination, "unrecognized pagination kind", context)

	assert.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, context, msg.Context)
	assert.Equal(t, "unknown", msg.Context["value"])
}

// TestToJSON tests JSON serialization
func TestToJSON(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeMissingField, "baseURL is required").
		AddWarning(CodeInvalidSchedule, "timezone defaults to UTC")

	json, err := result.ToJSON()

	assert.NoError(t, err)
	assert.NotEmpty(t, json)
	assert.Contains(t, json, "MISSING_FIELD")
	assert.Contains(t, json, "INVALID_SCHEDULE")
	assert.Contains(t, json, "ERROR")
	assert.Contains(t, json, "WARNING")
}

// TestFromJSON tests JSON deserialization
func TestFromJSON(t *testing.T) {
	original := NewResult()
	original.
		AddError(CodeMissingField, "baseURL is required").
		AddWarning(CodeInvalidSchedule, "timezone defaults to UTC")

	jsonStr, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(jsonStr)
	require.NoError(t, err)

	assert.Len(t, restored.Messages, 2)
	assert.Equal(t, original.ErrorCount(), restored.ErrorCount())
	assert.Equal(t, original.WarningCount(), restored.WarningCount())
}

// TestSummary tests human-readable summary
func TestSummary(t *testing.T) {
	result := NewResult()
	result.
		AddError(CodeMissingField, "baseURL is required").
		AddWarning(CodeInvalidSchedule, "timezone defaults to UTC").
		AddInfo("INFO", "Done")

	summary := result.Summary()

	assert.Contains(t, summary, "1 errors")
	assert.Contains(t, summary, "1 warnings")
	assert.Contains(t, summary, "1 info")
	assert.Contains(t, summary, "MISSING_FIELD")
	assert.Contains(t, summary, "INVALID_SCHEDULE")
}

// TestChaining tests method chaining
func TestChaining(t *testing.T) {
	result := NewResult().
		AddError("CODE1", "Error 1").
		AddWarning("CODE2", "Warning 1").
		AddInfo("CODE3", "Info 1")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
}

// TestIntegrationCreateValidation mirrors the shape api.validateIntegrationRequest
// returns when a create request has multiple problems at once.
func TestIntegrationCreateValidation(t *testing.T) {
	result := NewResult()

	result.AddErrorWithContext(
		CodeMissingField,
		"ftp.host is required when kind is FTP",
		map[string]interface{}{"field": "ftp.host"},
	)

	result.AddErrorWithContext(
		CodeInvalidPagination,
		"pagination.kind must be one of none, page, offset, cursor, link-header",
		map[string]interface{}{"value": "sequence"},
	)

	result.AddWarning(
		CodeInvalidSchedule,
		"frequency=weekly with no daysOfWeek defaults to [Monday]",
	)

	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Equal(t, 2, result.ErrorCount())
}
