// Package forms defines the portal's user-facing forms and how each one is
// submitted.
package forms

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/campus-portal/companion/internal/validate"
)

// Form kinds.
const (
	KindFeedback    = "feedback"
	KindCertificate = "certificate"
)

var studentIDPattern = regexp.MustCompile(`^[A-Za-z]{0,3}[0-9]{5,10}$`)

// Feedback is the post-event feedback form.
var Feedback = validate.Spec{
	Kind: KindFeedback,
	Rules: []validate.Rule{
		{Field: "rating", Check: validate.All(validate.Required(), validate.IntRange(1, 5))},
		{Field: "comments", Check: validate.All(validate.Required(), validate.MinLength(10), validate.MaxLength(1000))},
	},
}

// Certificate is the participation certificate request form.
var Certificate = validate.Spec{
	Kind: KindCertificate,
	Rules: []validate.Rule{
		{Field: "full_name", Check: validate.All(validate.Required(), validate.MaxLength(100))},
		{Field: "email", Check: validate.All(validate.Required(), validate.Email())},
		{Field: "student_id", Check: validate.Optional(validate.Pattern(studentIDPattern, "must look like a student number"))},
	},
}

// SpecFor returns the form definition for a kind.
func SpecFor(kind string) (validate.Spec, bool) {
	switch kind {
	case KindFeedback:
		return Feedback, true
	case KindCertificate:
		return Certificate, true
	default:
		return validate.Spec{}, false
	}
}

// Submitter is the portal surface forms are sent to.
type Submitter interface {
	SubmitFeedback(ctx context.Context, eventID string, feedback map[string]any) error
	RequestCertificate(ctx context.Context, eventID string, request map[string]any) error
}

// SendFunc delivers validated values to the portal.
type SendFunc func(ctx context.Context, values map[string]string) error

// Sender returns the submit path for a form kind bound to one event.
func Sender(kind, eventID string, s Submitter) (SendFunc, error) {
	switch kind {
	case KindFeedback:
		return func(ctx context.Context, values map[string]string) error {
			rating, err := strconv.Atoi(strings.TrimSpace(values["rating"]))
			if err != nil {
				return fmt.Errorf("parsing rating: %w", err)
			}
			return s.SubmitFeedback(ctx, eventID, map[string]any{
				"rating":   rating,
				"comments": strings.TrimSpace(values["comments"]),
			})
		}, nil
	case KindCertificate:
		return func(ctx context.Context, values map[string]string) error {
			req := map[string]any{
				"full_name": strings.TrimSpace(values["full_name"]),
				"email":     strings.TrimSpace(values["email"]),
			}
			if id := strings.TrimSpace(values["student_id"]); id != "" {
				req["student_id"] = id
			}
			return s.RequestCertificate(ctx, eventID, req)
		}, nil
	default:
		return nil, fmt.Errorf("unknown form kind %q", kind)
	}
}
