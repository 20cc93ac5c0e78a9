package domain

import "errors"

var (
	ErrRuleServiceUnavailable = errors.New("rule_service_unavailable")
	ErrInvalidRuleResponse    = errors.New("invalid_rule_response")
)
