package app

import (
	"context"
	"fmt"
	"time"
)

// Check is one status probe result.
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details"`
}

const checkTimeout = 5 * time.Second

// Status probes the credential, the local store, the model rotation and,
// for OpenRouter, the key quota.
func (a *App) Status(ctx context.Context) []Check {
	checks := []Check{
		probe(ctx, "credential", func(context.Context) (string, error) {
			if err := a.gen.Ready(); err != nil {
				return "", err
			}
			return a.gen.Provider() + " key configured", nil
		}),
		probe(ctx, "store", func(ctx context.Context) (string, error) {
			recs, err := a.Store.FeedbackHistory(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d ratings stored", len(recs)), nil
		}),
		probe(ctx, "models", func(ctx context.Context) (string, error) {
			svc, err := a.Recommender(ctx)
			if err != nil {
				return "", err
			}
			info := svc.CurrentModelInfo()
			return fmt.Sprintf("%s (%d of %d)", info.CurrentModel, info.CurrentIndex+1, info.TotalModels), nil
		}),
	}
	if a.openRouter != nil {
		checks = append(checks, probe(ctx, "quota", func(ctx context.Context) (string, error) {
			k, err := a.openRouter.KeyStatus(ctx)
			if err != nil {
				return "", err
			}
			limit := "unlimited"
			if !k.Unlimited() {
				limit = fmt.Sprintf("%.2f", *k.Limit)
			}
			return fmt.Sprintf("usage %.2f, limit %s, free tier %t, %d free requests/day", k.Usage, limit, k.IsFreeTier, k.DailyFreeRequests()), nil
		}))
	}
	return checks
}

func probe(ctx context.Context, name string, fn func(context.Context) (string, error)) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	details, err := fn(ctx)
	if err != nil {
		return Check{Name: name, Details: err.Error()}
	}
	return Check{Name: name, OK: true, Details: details}
}
