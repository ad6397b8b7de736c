package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rileyhilliard/pipetop/internal/errors"
)

// minInterval keeps the tick and refresh loops from spinning.
const minInterval = 10 * time.Millisecond

// Validate checks the config and returns a CONFIG error with a suggestion
// for the first problem found.
func Validate(cfg *Config) error {
	if err := validateAPI(cfg.API); err != nil {
		return err
	}
	return validateDashboard(cfg.Dashboard)
}

func validateAPI(api APIConfig) error {
	if api.URL != "" {
		u, err := url.Parse(api.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("api.url %q isn't a valid http(s) URL", api.URL),
				"Use something like http://127.0.0.1:8686/graphql")
		}
	} else if api.Address == "" {
		return errors.New(errors.ErrConfig,
			"api.address is empty",
			"Set api.address to host:port, e.g. "+DefaultAddress)
	} else if strings.Contains(api.Address, "://") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("api.address %q should be host:port, not a URL", api.Address),
			"Put full URLs in api.url (or pass --url) instead")
	}

	if err := validateEnum("api.transport", api.Transport, Transports); err != nil {
		return err
	}
	if api.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("api.timeout must be positive, got %s", api.Timeout),
			"Use a duration like 5s")
	}
	if api.LostAfter < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("api.lost_after must be at least 1, got %d", api.LostAfter),
			fmt.Sprintf("The default is %d", DefaultLostAfter))
	}
	return nil
}

func validateDashboard(d DashboardConfig) error {
	if d.RefreshInterval < minInterval {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("dashboard.refresh_interval %s is too short", d.RefreshInterval),
			fmt.Sprintf("Use at least %s", minInterval))
	}
	if d.TickInterval < minInterval {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("dashboard.tick_interval %s is too short", d.TickInterval),
			fmt.Sprintf("Use at least %s", minInterval))
	}
	if err := validateEnum("dashboard.renderer", d.Renderer, Renderers); err != nil {
		return err
	}
	if err := validateEnum("dashboard.sort", d.Sort, SortKeys); err != nil {
		return err
	}
	if d.TrendSize < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("dashboard.trend_size can't be negative, got %d", d.TrendSize),
			"Use 0 for the default")
	}
	return nil
}

// validateEnum rejects values outside valid, suggesting the closest one.
func validateEnum(key, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("%s: unknown value %q", key, value),
		Suggest(value, valid))
}

// Suggest proposes the valid value closest to value by edit distance, or
// lists them all when nothing is close.
func Suggest(value string, valid []string) string {
	best, bestDist := "", -1
	for _, v := range valid {
		d := levenshtein.ComputeDistance(strings.ToLower(value), v)
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	if best != "" && bestDist <= 3 {
		return fmt.Sprintf("Did you mean %q?", best)
	}
	return "Valid values: " + strings.Join(valid, ", ")
}
