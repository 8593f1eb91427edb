//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/grpcx"
	settingsv1 "github.com/TOMBRITO1979/odowell.pro-sub001/protos/gen/settings/v1"
)

// grpcProvider fetches clinic settings from a dedicated settings service.
// Used when the settings store is split out of this deployment.
type grpcProvider struct {
	client   settingsv1.SettingsServiceClient
	fallback Provider
}

func NewSettingsServiceProvider(logger *slog.Logger, fallback Provider, addr string) (Provider, error) {
	if addr == "" {
		return fallback, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc settings provider unavailable, using local store", "err", err)
		return fallback, nil
	}

	logger.Info("grpc settings provider enabled", "addr", addr)
	return &grpcProvider{client: settingsv1.NewSettingsServiceClient(conn), fallback: fallback}, nil
}

func (p *grpcProvider) ClinicPolicy(ctx context.Context, clinicID string) (Policy, error) {
	resp, err := p.client.GetClinicSettings(ctx, &settingsv1.ClinicSettingsRequest{ClinicId: clinicID})
	if err != nil {
		return p.fallback.ClinicPolicy(ctx, clinicID)
	}

	pol := Policy{
		OpenHour:    int(resp.GetOpenHour()),
		CloseHour:   int(resp.GetCloseHour()),
		SlotMinutes: int(resp.GetSlotMinutes()),
		Timezone:    resp.GetTimezone(),
	}
	if lb := resp.GetLunchBreak(); lb != nil {
		pol.Lunch = &LunchBreak{StartHour: int(lb.GetStartHour()), EndHour: int(lb.GetEndHour())}
	}
	if err := pol.Validate(); err != nil {
		return Policy{}, err
	}
	return pol, nil
}
