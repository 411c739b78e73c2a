package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors per field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Error joins every message, fields sorted, so an *Errors can be returned as error.
func (e *Errors) Error() string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var msgs []string
	for _, f := range fields {
		msgs = append(msgs, e.Bag[f]...)
	}
	return "validation failed: " + strings.Join(msgs, " ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"APP_TARGET_FPS": "sometimes|integer|gte:1"}
type Rules map[string]string

// Validator validates a flat map of input values.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a new Validator.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// Err returns the error bag as an error, or nil when validation passes.
func (v *Validator) Err() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

// ── Core validation loop ─────────────────────────────────────────────────────

var (
	hostPortRe = regexp.MustCompile(`^[^\s:]*:\d{1,5}$`)
)

func (v *Validator) validate() {
	if v.ran {
		return
	}
	v.ran = true

	for field, ruleStr := range v.rules {
		value := v.data[field]

		for _, rule := range strings.Split(ruleStr, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// max:3 → name=max, param=3
			name, param, _ := strings.Cut(rule, ":")

			if !v.applyRule(field, value, name, param) {
				break // bail on first failure
			}
		}
	}
}

// applyRule returns true if the rule passes.
func (v *Validator) applyRule(field, value, rule, param string) bool {
	switch rule {
	case "required":
		if strings.TrimSpace(value) == "" {
			v.errors.add(field, fmt.Sprintf("The %s field is required.", field))
			return false
		}

	case "required_if":
		// required_if:OTHER,value
		other, want, _ := strings.Cut(param, ",")
		if v.data[other] == want && strings.TrimSpace(value) == "" {
			v.errors.add(field, fmt.Sprintf("The %s field is required when %s is %s.", field, other, want))
			return false
		}

	case "sometimes":
		// Skip remaining rules if field is absent.
		if value == "" {
			return false
		}

	case "integer":
		if _, err := strconv.Atoi(value); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be an integer.", field))
			return false
		}

	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s field must be true or false.", field))
			return false
		}

	case "duration":
		if _, err := time.ParseDuration(value); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be a duration such as 30s or 10ms.", field))
			return false
		}

	case "url":
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			v.errors.add(field, fmt.Sprintf("The %s must be a valid URL.", field))
			return false
		}

	case "host_port":
		if !hostPortRe.MatchString(value) {
			v.errors.add(field, fmt.Sprintf("The %s must be host:port.", field))
			return false
		}

	case "max":
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) > n {
			v.errors.add(field, fmt.Sprintf("The %s may not be greater than %d characters.", field, n))
			return false
		}

	case "in":
		for _, a := range strings.Split(param, ",") {
			if strings.EqualFold(strings.TrimSpace(a), value) {
				return true
			}
		}
		v.errors.add(field, fmt.Sprintf("The selected %s is invalid.", field))
		return false

	case "gte":
		f, err := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if err != nil || f < t {
			v.errors.add(field, fmt.Sprintf("The %s must be greater than or equal to %s.", field, param))
			return false
		}

	case "lte":
		f, err := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if err != nil || f > t {
			v.errors.add(field, fmt.Sprintf("The %s must be less than or equal to %s.", field, param))
			return false
		}
	}

	return true
}
