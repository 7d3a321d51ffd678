package serrors

import "fmt"

// BaseError is a coded error that can be matched with errors.As and localized by LocaleKey.
type BaseError struct {
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	LocaleKey    string            `json:"locale_key,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithTemplateData returns a copy so package-level sentinels are never mutated.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	out := *e
	out.TemplateData = data
	return &out
}

// Is matches by code, so copies produced by WithTemplateData still satisfy errors.Is
// against the sentinel they were derived from.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok || t == nil {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}
