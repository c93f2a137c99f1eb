package envelope

import "github.com/chazu/toponame/pkg/classify"

// StatusDetails is the per-feature status persisted in documents. Older
// documents carry only Code (and sometimes Message); Migrate fills in the
// rest.
type StatusDetails struct {
	Code        Code     `json:"code"`
	StatusClass string   `json:"status_class,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Migrate back-fills a missing or unreadable status_class and a missing
// severity from the classification table. Code and Message are never
// touched. changed reports whether anything was filled in.
func Migrate(d StatusDetails) (out StatusDetails, changed bool) {
	cls, _ := Classify(d.Code)
	out = d
	if _, err := classify.ParseStatusClass(d.StatusClass); err != nil {
		out.StatusClass = cls.Status.String()
		changed = true
	}
	if !validSeverity(d.Severity) {
		out.Severity = cls.Severity
		changed = true
	}
	return out, changed
}

// Status returns the parsed status class. It assumes d has been migrated
// and falls back to the table otherwise.
func (d StatusDetails) Status() classify.StatusClass {
	if s, err := classify.ParseStatusClass(d.StatusClass); err == nil {
		return s
	}
	cls, _ := Classify(d.Code)
	return cls.Status
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}
