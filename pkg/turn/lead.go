package turn

import (
	"net/mail"
	"strconv"
	"strings"
)

// leadForm is the in-progress lead wizard.
type leadForm struct {
	step       LeadStep
	name       string
	email      string
	consent    bool
	err        string
	submitting bool
}

var leadSteps = []LeadStep{LeadStepName, LeadStepEmail, LeadStepConsent}

func (f *leadForm) set(field, value string) {
	switch field {
	case FieldName:
		f.name = value
	case FieldEmail:
		f.email = strings.TrimSpace(value)
	case FieldConsent:
		f.consent, _ = strconv.ParseBool(strings.TrimSpace(value))
	}
}

// valid reports whether the field of step passes validation.
func (f *leadForm) valid(step LeadStep) bool {
	switch step {
	case LeadStepName:
		return ValidName(f.name)
	case LeadStepEmail:
		return ValidEmail(f.email)
	case LeadStepConsent:
		return f.consent
	}
	return false
}

// firstInvalid returns the earliest step that fails validation.
func (f *leadForm) firstInvalid() (LeadStep, bool) {
	for _, s := range leadSteps {
		if !f.valid(s) {
			return s, true
		}
	}
	return "", false
}

func (f *leadForm) next() {
	for i, s := range leadSteps {
		if s == f.step && i+1 < len(leadSteps) {
			f.step = leadSteps[i+1]
			return
		}
	}
}

func (f *leadForm) back() {
	for i, s := range leadSteps {
		if s == f.step && i > 0 {
			f.step = leadSteps[i-1]
			return
		}
	}
}

// ValidName reports whether name is non-blank.
func ValidName(name string) bool {
	return strings.TrimSpace(name) != ""
}

// ValidEmail reports whether s is a bare RFC 5322 address whose domain has
// at least one dot.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	domain := s[strings.LastIndex(s, "@")+1:]
	return strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") &&
		!strings.HasSuffix(domain, ".")
}
