package service

import (
	"sort"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
)

// PolicyRegistry maps action categories to quota policies.
type PolicyRegistry interface {
	// PolicyFor returns the effective policy for action, or an unknown_action error.
	PolicyFor(action constants.ActionCategory) (models.QuotaPolicy, error)

	// Validate returns an unknown_action error for the first action that has no policy.
	Validate(actions ...constants.ActionCategory) error

	// Policies returns the effective policy table sorted by action.
	Policies() []models.QuotaPolicy
}

// TestOverride replaces the limit of a single action category in verification
// environments. It is inert unless Enabled is set, Action names a registered
// category and Limit is positive.
type TestOverride struct {
	Enabled bool
	Action  constants.ActionCategory
	Limit   int64
}

type policyRegistry struct {
	policies map[constants.ActionCategory]models.QuotaPolicy
}

// NewPolicyRegistry builds an immutable registry from the given policies and override.
//
// Parameters:
//   - policies: one entry per action category; limit and window must be positive
//   - override: optional test-mode override, applied once here
//
// Returns:
//   - PolicyRegistry: the registry
//   - error: invalid_config on duplicate or non-positive entries
func NewPolicyRegistry(policies []models.QuotaPolicy, override TestOverride) (PolicyRegistry, error) {
	table := make(map[constants.ActionCategory]models.QuotaPolicy, len(policies))
	for _, p := range policies {
		if p.Action == "" {
			return nil, errors.ErrInvalidConfig("quota policy with empty action")
		}
		if p.Limit <= 0 || p.WindowSeconds <= 0 {
			return nil, errors.ErrInvalidConfig("quota policy for " + string(p.Action) + " must have positive limit and window")
		}
		if _, dup := table[p.Action]; dup {
			return nil, errors.ErrInvalidConfig("duplicate quota policy for " + string(p.Action))
		}
		p.Overridden = false
		table[p.Action] = p
	}

	if override.Enabled && override.Limit > 0 {
		if p, ok := table[override.Action]; ok {
			p.Limit = override.Limit
			p.Overridden = true
			table[override.Action] = p
		}
	}

	return &policyRegistry{policies: table}, nil
}

func (r *policyRegistry) PolicyFor(action constants.ActionCategory) (models.QuotaPolicy, error) {
	p, ok := r.policies[action]
	if !ok {
		return models.QuotaPolicy{}, errors.ErrUnknownAction(action)
	}
	return p, nil
}

func (r *policyRegistry) Validate(actions ...constants.ActionCategory) error {
	for _, a := range actions {
		if _, ok := r.policies[a]; !ok {
			return errors.ErrUnknownAction(a)
		}
	}
	return nil
}

func (r *policyRegistry) Policies() []models.QuotaPolicy {
	out := make([]models.QuotaPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

//Personal.AI order the ending
