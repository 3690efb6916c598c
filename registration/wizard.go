// Package registration implements the multi-step registration wizard as
// sequential form-state accumulation with per-step client-side
// validation. The wizard only accumulates and validates; the backend owns
// the created account.
package registration

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
	"github.com/agrimandi/agrimandi-go/users"
)

// Step identifies one wizard step.
type Step string

const (
	StepIdentity Step = "identity"
	StepContact  Step = "contact"
	StepLocation Step = "location"
	StepRole     Step = "role"
)

// steps is the fixed wizard order.
var steps = []Step{StepIdentity, StepContact, StepLocation, StepRole}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,14}$`)

// Fields is one step's submitted form fields.
type Fields map[string]string

// Payload is the accumulated registration request submitted at the end.
type Payload struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Password    string     `json:"password"`
	PhoneNumber string     `json:"phone_number"`
	Email       string     `json:"email,omitempty"`
	Village     string     `json:"village"`
	District    string     `json:"district"`
	State       string     `json:"state"`
	Role        users.Role `json:"role"`
}

// Wizard accumulates registration form state step by step. Apply
// validates the current step before advancing; Back returns to the
// previous step without losing accumulated fields.
type Wizard struct {
	api *apiclient.Client

	mu        sync.Mutex
	index     int
	payload   Payload
	submitted bool
}

// NewWizard creates a registration wizard.
func NewWizard(api *apiclient.Client) *Wizard {
	return &Wizard{api: api}
}

// Current returns the step awaiting input.
func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return steps[w.index]
}

// Done reports whether all steps have been applied.
func (w *Wizard) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index >= len(steps)-1 && w.stepComplete(steps[len(steps)-1])
}

// Apply validates fields for the current step, accumulates them and
// advances. Validation failures leave the wizard on the same step.
func (w *Wizard) Apply(step Step, fields Fields) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitted {
		return apperrors.ErrWizardFinished
	}
	if step != steps[w.index] {
		return errors.Errorf("[Wizard.Apply] expected step %q, got %q", steps[w.index], step)
	}

	if err := w.validate(step, fields); err != nil {
		return err
	}
	w.accumulate(step, fields)
	if w.index < len(steps)-1 {
		w.index++
	}
	return nil
}

// Back returns to the previous step. Accumulated fields are kept.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.index > 0 {
		w.index--
	}
}

// Payload returns the accumulated registration request so far.
func (w *Wizard) Payload() Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payload
}

// Submit posts the accumulated payload. All steps must be complete.
func (w *Wizard) Submit(ctx context.Context) (users.User, error) {
	w.mu.Lock()
	if w.submitted {
		w.mu.Unlock()
		return users.User{}, apperrors.ErrWizardFinished
	}
	for _, step := range steps {
		if !w.stepComplete(step) {
			w.mu.Unlock()
			return users.User{}, errors.Wrapf(apperrors.ErrStepIncomplete, "[Wizard.Submit] step %q", step)
		}
	}
	payload := w.payload
	w.mu.Unlock()

	resp, err := w.api.Post(ctx, apiclient.EndpointRegister, payload, apiclient.WithoutUnauthorizedSignal())
	if err != nil {
		return users.User{}, errors.Wrap(err, "[Wizard.Submit] request")
	}
	created, err := apiclient.DecodeOne[users.User](resp.Body)
	if err != nil {
		return users.User{}, errors.Wrap(err, "[Wizard.Submit] decode")
	}

	w.mu.Lock()
	w.submitted = true
	w.mu.Unlock()
	return created, nil
}

func (w *Wizard) validate(step Step, fields Fields) error {
	switch step {
	case StepIdentity:
		if strings.TrimSpace(fields["first_name"]) == "" {
			return errors.Wrap(apperrors.ErrStepIncomplete, "first name is required")
		}
		if err := ValidatePasswordStrength(fields["password"]); err != nil {
			return err
		}
	case StepContact:
		if !phonePattern.MatchString(fields["phone_number"]) {
			return errors.Wrap(apperrors.ErrStepIncomplete, "a valid phone number is required")
		}
		if email := fields["email"]; email != "" && !strings.Contains(email, "@") {
			return errors.Wrap(apperrors.ErrStepIncomplete, "email address is not valid")
		}
	case StepLocation:
		if strings.TrimSpace(fields["district"]) == "" || strings.TrimSpace(fields["state"]) == "" {
			return errors.Wrap(apperrors.ErrStepIncomplete, "district and state are required")
		}
	case StepRole:
		switch users.Role(fields["role"]) {
		case users.RoleFarmer, users.RoleBuyer, users.RoleProcessor, users.RoleTransporter:
		default:
			return errors.Wrap(apperrors.ErrStepIncomplete, "choose a valid role")
		}
	}
	return nil
}

func (w *Wizard) accumulate(step Step, fields Fields) {
	switch step {
	case StepIdentity:
		w.payload.FirstName = strings.TrimSpace(fields["first_name"])
		w.payload.LastName = strings.TrimSpace(fields["last_name"])
		w.payload.Password = fields["password"]
	case StepContact:
		w.payload.PhoneNumber = fields["phone_number"]
		w.payload.Email = strings.TrimSpace(fields["email"])
	case StepLocation:
		w.payload.Village = strings.TrimSpace(fields["village"])
		w.payload.District = strings.TrimSpace(fields["district"])
		w.payload.State = strings.TrimSpace(fields["state"])
	case StepRole:
		w.payload.Role = users.Role(fields["role"])
	}
}

func (w *Wizard) stepComplete(step Step) bool {
	switch step {
	case StepIdentity:
		return w.payload.FirstName != "" && w.payload.Password != ""
	case StepContact:
		return w.payload.PhoneNumber != ""
	case StepLocation:
		return w.payload.District != "" && w.payload.State != ""
	case StepRole:
		return w.payload.Role != ""
	}
	return false
}
