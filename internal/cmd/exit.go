package cmd

import (
	"errors"
	"fmt"
	"os"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// ExitWithCode logs msg and err with the foundry exit code metadata, then exits.
// A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	code := int(exitCode)
	fields := []zap.Field{zap.Int("exit_code", code)}
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		code = info.Code
		fields = append(fields,
			zap.String("exit_name", info.Name),
			zap.String("exit_description", info.Description),
			zap.String("exit_category", info.Category))
	}

	var envelope *gferrors.ErrorEnvelope
	if errors.As(err, &envelope) && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	logger.Error(msg, fields...)
	os.Exit(code)
}

// ExitWithCodeStderr writes msg and the exit code metadata to stderr and exits.
// Use this for failures before logger initialization.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	line := "FATAL: " + msg
	var envelope *gferrors.ErrorEnvelope
	switch {
	case errors.As(err, &envelope) && envelope != nil:
		line = fmt.Sprintf("%s [%s]: %s (correlation: %s)", line, envelope.Code, envelope.Message, envelope.CorrelationID)
		if wrapped, ok := envelope.Context["wrapped_error"]; ok {
			line = fmt.Sprintf("%s\nUnderlying error: %v", line, wrapped)
		}
	case err != nil:
		line = fmt.Sprintf("%s: %v", line, err)
	}
	fmt.Fprintln(os.Stderr, line)

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
