package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
)

// ExitCodeFor picks the semantic exit code for a failed command.
func ExitCodeFor(err error) foundry.ExitCode {
	var (
		initErr      *client.InitError
		transportErr *client.TransportError
		httpErr      *client.HTTPError
		apiErr       *client.APIError
	)
	switch {
	case err == nil:
		return foundry.ExitCode(0)
	case stderrors.Is(err, quota.ErrQuotaExhausted):
		return foundry.ExitFailure
	case stderrors.As(err, &initErr),
		stderrors.As(err, &transportErr),
		stderrors.As(err, &httpErr),
		stderrors.As(err, &apiErr):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with the exit code's catalog metadata and exits.
// A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}

	var exhausted *quota.ExhaustedError
	if stderrors.As(err, &exhausted) {
		fields = append(fields,
			zap.String("window", exhausted.Window.String()),
			zap.Time("reset_time", exhausted.ResetAt))
	}

	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)
	os.Exit(info.Code)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	if !ok {
		os.Exit(int(exitCode))
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope.CorrelationID != "" {
		fmt.Fprintf(os.Stderr, "Correlation: %s\n", envelope.CorrelationID)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
