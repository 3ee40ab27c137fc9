package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies API errors for transport mapping.
type ErrorKind int

const (
	// KindParameter covers missing, empty, malformed and duplicate fields.
	KindParameter ErrorKind = iota + 1

	// KindPermission covers missing capability and ids that are invisible or
	// do not exist. The two are conflated so callers cannot probe for ids.
	KindPermission

	// KindReference covers references to entities that do not exist, such
	// as an unknown delegated agent.
	KindReference
)

func (k ErrorKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindPermission:
		return "permission"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// APIError is a terminal validation or permission failure. A batch operation
// returns the first one it finds and writes nothing.
type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is matches another APIError with the same kind and message, so sentinels
// below work with errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// ParameterError builds a KindParameter error.
func ParameterError(format string, args ...any) *APIError {
	return &APIError{Kind: KindParameter, Message: fmt.Sprintf(format, args...)}
}

// PermissionError builds a KindPermission error.
func PermissionError(format string, args ...any) *APIError {
	return &APIError{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// ReferenceError builds a KindReference error.
func ReferenceError(format string, args ...any) *APIError {
	return &APIError{Kind: KindReference, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of an APIError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// Sentinel errors with fixed messages.
var (
	ErrNoPermissions = PermissionError("No permissions to referred object or it does not exist!")

	ErrEmptyInput = ParameterError("Empty input parameter.")

	ErrIncorrectArguments = ParameterError("Incorrect arguments passed to function.")

	ErrRuleWithoutChecks = ParameterError("Cannot save discovery rule without checks.")

	ErrIncorrectProxy = ReferenceError("Incorrect proxy id.")

	ErrUniqueCheckType = ParameterError("Only agent, SNMPv1, SNMPv2 and SNMPv3 checks can be made unique.")

	ErrTooManyUnique = ParameterError("Only one check can be unique.")

	ErrIncorrectPortRange = ParameterError("Incorrect port range.")

	ErrIncorrectKey = ParameterError("Incorrect key.")

	ErrIncorrectCommunity = ParameterError("Incorrect SNMP community.")

	ErrIncorrectOID = ParameterError("Incorrect SNMP OID.")

	ErrDuplicateChecks = ParameterError("Checks should be unique.")
)

// Messages with arguments, kept together so tests can match them.
const (
	MsgFieldRequired     = "Field \"%s\" is required."
	MsgFieldMandatory    = "Field \"%s\" is mandatory."
	MsgCannotBeEmpty     = "Incorrect value for field \"%s\": cannot be empty."
	MsgIncorrectValue    = "Incorrect value \"%v\" for \"%s\" field."
	MsgIncorrectField    = "Incorrect value for field \"%s\"."
	MsgRuleExists        = "Discovery rule \"%s\" already exists."
	MsgInvalidItemKey    = "Invalid key \"%s\": %s."
	MsgBatchTooLarge     = "Batch size exceeds maximum of %d records."
	MsgUnknownSortField  = "Sorting by field \"%s\" not allowed."
	MsgUnknownOutputMode = "Incorrect value \"%v\" for \"%s\" parameter."
)
