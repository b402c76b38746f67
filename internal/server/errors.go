package server

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codeclash/codeclash-server/internal/game/gameerr"
)

// errorDomain is the ErrorInfo domain attached to gRPC statuses.
const errorDomain = "codeclash"

// Error codes the transports produce themselves.
const (
	codeRateLimited = "RATE_LIMITED"
	codeInternal    = "INTERNAL"
)

// ErrorPayload is the body of a websocket error envelope.
type ErrorPayload struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func errorPayload(err error) ErrorPayload {
	var ge *gameerr.Error
	if errors.As(err, &ge) {
		msg := ge.Message
		if msg == "" {
			msg = string(ge.Code)
		}
		return ErrorPayload{Code: string(ge.Code), Category: ge.Category().String(), Message: msg}
	}
	return ErrorPayload{Code: codeInternal, Category: codeInternal, Message: err.Error()}
}

func grpcCode(code gameerr.Code) codes.Code {
	switch code {
	case gameerr.CodeInvalidAction,
		gameerr.CodeTargetNotFound,
		gameerr.CodeInvalidTargetForCard,
		gameerr.CodeInsufficientTargets:
		return codes.InvalidArgument
	}
	switch code.Category() {
	case gameerr.CategoryNotFound:
		return codes.NotFound
	case gameerr.CategoryCapacity:
		return codes.ResourceExhausted
	case gameerr.CategoryInternalAI:
		return codes.Internal
	default:
		return codes.FailedPrecondition
	}
}

// statusFromError converts a rule engine error into a gRPC status carrying
// the engine code as ErrorInfo. Errors that already are statuses pass through.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	code := gameerr.CodeOf(err)
	if code == "" {
		if st, ok := status.FromError(err); ok {
			return st.Err()
		}
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(grpcCode(code), err.Error())
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(code),
		Domain:   errorDomain,
		Metadata: map[string]string{"category": code.Category().String()},
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// GameErrorCode extracts the engine code from a status produced by the game
// service, or "" when none is attached.
func GameErrorCode(err error) gameerr.Code {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return gameerr.Code(info.GetReason())
		}
	}
	return ""
}
