package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "pipeline execution failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "pipeline execution failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "pipeline.yaml", "line": "4"}
	err := formatter.Error("E002", "sort direction must be 1 or -1", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("✓ Pipeline valid (3 stages)")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Pipeline valid (3 stages)")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "pipeline execution failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "pipeline execution failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "pipeline.yaml"}
	err := formatter.Error("E001", "pipeline execution failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "pipeline.yaml")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing pipeline.yaml")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_TextErrorUsesErrWriter(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    stdout,
		ErrWriter: stderr,
	}

	require.NoError(t, formatter.Error(ErrCodeNotFound, "pipeline file not found: x.yaml", nil))
	assert.Empty(t, stdout.String())
	assert.Equal(t, "Error [E002]: pipeline file not found: x.yaml\n", stderr.String())
}

func TestOutputFormatter_JSONErrorUsesWriter(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    stdout,
		ErrWriter: stderr,
	}

	require.NoError(t, formatter.Error(ErrCodeInvalid, "bad", nil))
	assert.Empty(t, stderr.String())
	assert.Contains(t, stdout.String(), `"status":"error"`)
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := errors.New("disk full")
	err := formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", cause)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStoreFailed, resp.Error.Code)
	assert.Equal(t, "failed to open database: disk full", resp.Error.Message)
}

func TestOutputFormatter_FailWithoutCause(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitFailure, ErrCodeInvalid, "no collection", nil)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "no collection", err.Error())
	assert.Equal(t, "Error [E005]: no collection\n", buf.String())
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Table([]string{"_id", "a"}, [][]string{{"1", "x"}, {"2", "y"}})

	out := buf.String()
	assert.Contains(t, out, "_id")
	assert.Contains(t, out, "x")
	assert.Contains(t, out, "y")
	assert.Less(t, strings.Index(out, "x"), strings.Index(out, "y"))
}

func TestOutputFormatter_Logger(t *testing.T) {
	stderr := &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}, ErrWriter: stderr}
	quiet.Logger().Debug("hidden")
	quiet.Logger().Info("shown", "stage", 1)
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "msg=shown stage=1")

	stderr.Reset()
	verbose := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}, ErrWriter: stderr, Verbose: true}
	verbose.Logger().Debug("detail")
	assert.Contains(t, stderr.String(), "msg=detail")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitSuccess, "inner", nil))
	assert.Equal(t, ExitSuccess, GetExitCode(wrapped))
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E203",
		Message: "validation failed",
		Details: []string{"stage 1: $sort.b"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E203", decoded.Code)
	assert.Equal(t, "validation failed", decoded.Message)
}
