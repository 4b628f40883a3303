package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Wrap tags errors with one of
// these so Classify can resolve the category via errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrTransport      = errors.New("transport failure")
	ErrRejection      = errors.New("remote rejection")
	ErrDuplicate      = errors.New("duplicate submission")
	ErrContestClosed  = errors.New("contest closed")
	ErrDeadlinePassed = errors.New("deadline passed")
	ErrAuthExpired    = errors.New("authentication expired")
	ErrGeneric        = errors.New("submission failed")
)

// Category identifies one entry of the fixed error taxonomy.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryTransport      Category = "transport"
	CategoryRejection      Category = "rejection"
	CategoryDuplicate      Category = "duplicate"
	CategoryContestClosed  Category = "contest_closed"
	CategoryDeadlinePassed Category = "deadline_passed"
	CategoryAuthExpired    Category = "auth_expired"
	CategoryGeneric        Category = "generic"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrGeneric
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify resolves an error to its taxonomy category. Unmatched errors fall
// back to the generic category; the raw message is preserved by Details.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryGeneric
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrTransport):
		return CategoryTransport
	case errors.Is(err, ErrRejection):
		return CategoryRejection
	case errors.Is(err, ErrDuplicate):
		return CategoryDuplicate
	case errors.Is(err, ErrContestClosed):
		return CategoryContestClosed
	case errors.Is(err, ErrDeadlinePassed):
		return CategoryDeadlinePassed
	case errors.Is(err, ErrAuthExpired):
		return CategoryAuthExpired
	default:
		return CategoryGeneric
	}
}

// ClassifiedError is the terminal failure surfaced to the caller: the
// category, the human-readable message, and the recommended follow-up.
type ClassifiedError struct {
	Category Category
	Message  string
	Recovery string
}

func (e *ClassifiedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Category)
	}
	return e.Message
}

// Unwrap resolves the category back to its sentinel marker so a classified
// error still matches errors.Is and survives re-classification intact.
func (e *ClassifiedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return markerFor(e.Category)
}

// Details extracts the classified view of an error. The message strips the
// marker prefix so users see the stage detail rather than the sentinel text.
// An error that is already classified passes through unchanged.
func Details(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}
	category := Classify(err)
	message := strings.TrimSpace(err.Error())
	if marker := markerFor(category); marker != nil {
		message = strings.TrimSpace(strings.TrimPrefix(message, marker.Error()+":"))
	}
	if message == "" {
		message = string(category)
	}
	return &ClassifiedError{
		Category: category,
		Message:  message,
		Recovery: RecoveryAction(category),
	}
}

// RecoveryAction returns the follow-up recommendation for a category.
func RecoveryAction(category Category) string {
	switch category {
	case CategoryValidation:
		return "fix the draft and submit again"
	case CategoryTransport:
		return "check your connection and retry the submission"
	case CategoryRejection:
		return "retry the submission; contact support if it keeps failing"
	case CategoryDuplicate:
		return "you already reached the submission limit for this contest"
	case CategoryContestClosed:
		return "this contest no longer accepts submissions"
	case CategoryDeadlinePassed:
		return "the submission deadline has passed"
	case CategoryAuthExpired:
		return "sign in again and retry the submission"
	default:
		return "retry the submission"
	}
}

func markerFor(category Category) error {
	switch category {
	case CategoryValidation:
		return ErrValidation
	case CategoryTransport:
		return ErrTransport
	case CategoryRejection:
		return ErrRejection
	case CategoryDuplicate:
		return ErrDuplicate
	case CategoryContestClosed:
		return ErrContestClosed
	case CategoryDeadlinePassed:
		return ErrDeadlinePassed
	case CategoryAuthExpired:
		return ErrAuthExpired
	default:
		return nil
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
