package service

import (
	"context"
	"strings"
)

// EntitlementChecker answers whether a user holds the premium plan
type EntitlementChecker interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// StaticEntitlements grants premium to a fixed allow-list
type StaticEntitlements struct {
	users map[string]struct{}
}

// NewStaticEntitlements creates a checker over userIDs
func NewStaticEntitlements(userIDs []string) *StaticEntitlements {
	users := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			users[id] = struct{}{}
		}
	}
	return &StaticEntitlements{users: users}
}

func (s *StaticEntitlements) IsPremium(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, ok := s.users[userID]
	return ok, nil
}

func requirePremium(ctx context.Context, checker EntitlementChecker, userID string) error {
	if checker == nil {
		return ErrNotPremium
	}
	ok, err := checker.IsPremium(ctx, userID)
	if err != nil {
		return toAppError("failed to check entitlement", err)
	}
	if !ok {
		return ErrNotPremium
	}
	return nil
}
