package licensing

import (
	"fmt"
	"time"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// ExpiryWarning is how long before expiry a check starts returning a warning
const ExpiryWarning = 7 * 24 * time.Hour

// LimitChecker compares usage against the license limits in memory
type LimitChecker struct {
	// Now defaults to time.Now when Usage.Now is zero
	Now func() time.Time
}

// NewLimitChecker creates a limit checker using the wall clock
func NewLimitChecker() *LimitChecker {
	return &LimitChecker{Now: time.Now}
}

// Check implements Checker
func (c *LimitChecker) Check(lic *License, usage Usage) (*CheckResult, error) {
	if lic == nil {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the license is missing")
	}

	now := usage.Now
	if now.IsZero() {
		now = time.Now()
		if c.Now != nil {
			now = c.Now()
		}
	}

	result := &CheckResult{}
	claims := lic.Claims
	if !claims.IssuedAt.IsZero() && now.Before(claims.IssuedAt) {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess,
			"the license is not valid yet. issued_at=%s", claims.IssuedAt.Format(time.RFC3339))
	}
	if !claims.ExpiresAt.IsZero() {
		if !now.Before(claims.ExpiresAt) {
			return nil, terrors.New(terrors.CodeUnauthorizedAccess,
				"the license has expired. expires_at=%s", claims.ExpiresAt.Format(time.RFC3339))
		}
		if claims.ExpiresAt.Sub(now) < ExpiryWarning {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("the license expires soon. expires_at=%s", claims.ExpiresAt.Format(time.RFC3339)))
		}
	}

	limits := lic.Limits
	if err := exceeds(terrors.CodeUnsupportedCommand, "root command", limits.RootCommandLimit, usage.Counts.Roots); err != nil {
		return nil, err
	}
	if err := exceeds(terrors.CodeUnsupportedCommand, "grouped command", limits.GroupedCommandLimit, usage.Counts.Groups); err != nil {
		return nil, err
	}
	if err := exceeds(terrors.CodeUnsupportedCommand, "sub command",
		limits.SubCommandLimit, usage.Counts.SubCommands+usage.Counts.Natives); err != nil {
		return nil, err
	}
	if err := exceeds(terrors.CodeUnsupportedOption, "option", limits.OptionLimit, usage.Options); err != nil {
		return nil, err
	}
	if err := exceeds(terrors.CodeUnsupportedArgument, "argument", limits.ArgumentLimit, usage.Arguments); err != nil {
		return nil, err
	}

	if len(limits.DataTypes) > 0 {
		for _, dt := range usage.DataTypes {
			if !contains(limits.DataTypes, string(dt)) {
				return nil, terrors.New(terrors.CodeUnauthorizedAccess,
					"the data type is not licensed. data_type=%s command=%s", dt, usage.Command)
			}
		}
	}
	if limits.StrictDataType && !usage.StrictDataType {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the license requires strict data type checking")
	}
	if len(limits.StoreImplementations) > 0 && !contains(limits.StoreImplementations, usage.StoreImplementation) {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess,
			"the store implementation is not licensed. store=%s", usage.StoreImplementation)
	}
	if len(limits.ServiceImplementations) > 0 && !contains(limits.ServiceImplementations, usage.ServiceImplementation) {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess,
			"the service implementation is not licensed. service=%s", usage.ServiceImplementation)
	}
	return result, nil
}

func exceeds(code terrors.Code, what string, limit, current int) error {
	if limit > 0 && current > limit {
		return terrors.New(code, "the %s limit is exceeded. limit=%d current=%d", what, limit, current)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
