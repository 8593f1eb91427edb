package policy

import (
	"context"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
)

type Provider interface {
	ClinicPolicy(ctx context.Context, clinicID string) (Policy, error)
}

type staticProvider struct {
	pol Policy
}

func NewStaticProvider(pol Policy) Provider {
	return &staticProvider{pol: pol}
}

func (p *staticProvider) ClinicPolicy(_ context.Context, _ string) (Policy, error) {
	return p.pol, nil
}

// storeProvider reads per-clinic settings from the settings store and falls
// back to the default policy for clinics that never saved any.
type storeProvider struct {
	repo     *storage.SettingsRepository
	fallback Policy
}

func NewStoreProvider(repo *storage.SettingsRepository, fallback Policy) Provider {
	return &storeProvider{repo: repo, fallback: fallback}
}

func (p *storeProvider) ClinicPolicy(ctx context.Context, clinicID string) (Policy, error) {
	s, ok, err := p.repo.Get(ctx, clinicID)
	if err != nil {
		return Policy{}, err
	}
	if !ok {
		return p.fallback, nil
	}
	pol := FromSettings(s)
	if err := pol.Validate(); err != nil {
		return Policy{}, err
	}
	return pol, nil
}

func FromSettings(s storage.ClinicSettings) Policy {
	pol := Policy{
		OpenHour:    s.OpenHour,
		CloseHour:   s.CloseHour,
		SlotMinutes: s.SlotMinutes,
		Timezone:    s.Timezone,
	}
	if s.LunchEnabled {
		pol.Lunch = &LunchBreak{StartHour: s.LunchStartHour, EndHour: s.LunchEndHour}
	}
	return pol
}
