// Package catalog defines the endpoint catalog: the declarative data model
// loaded from configuration and consumed by the route index and rule engine.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint is a configured method/path template plus its candidate response
// list. Immutable after load.
type Endpoint struct {
	Name      string     `mapstructure:"name" yaml:"name"`
	Method    string     `mapstructure:"method" yaml:"method"`
	Path      string     `mapstructure:"path" yaml:"path"`
	Stateful  bool       `mapstructure:"stateful" yaml:"stateful"`
	StateKey  string     `mapstructure:"state_key" yaml:"state_key"`
	Responses []Response `mapstructure:"responses" yaml:"responses"`
}

// Response is one candidate response for an endpoint.
type Response struct {
	Status      int               `mapstructure:"status" yaml:"status"`
	Delay       string            `mapstructure:"delay" yaml:"delay"`
	Body        string            `mapstructure:"body" yaml:"body"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers"`
	Condition   string            `mapstructure:"condition" yaml:"condition"`
	Probability *float64          `mapstructure:"probability" yaml:"probability"`
	Default     bool              `mapstructure:"default" yaml:"default"`
}

// Validate checks every invariant §6 requires of a loaded catalog: non-empty
// name/method/path, at least one response, at most one default, status in
// [100, 600), probability in [0,1], and a parseable delay.
func Validate(endpoints []Endpoint) error {
	seen := make(map[string]struct{}, len(endpoints))
	for i, ep := range endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint[%d]: name must not be empty", i)
		}
		if _, dup := seen[ep.Name]; dup {
			return fmt.Errorf("endpoint %q: duplicate name", ep.Name)
		}
		seen[ep.Name] = struct{}{}

		if ep.Method == "" {
			return fmt.Errorf("endpoint %q: method must not be empty", ep.Name)
		}
		if ep.Path == "" {
			return fmt.Errorf("endpoint %q: path must not be empty", ep.Name)
		}
		if len(ep.Responses) == 0 {
			return fmt.Errorf("endpoint %q: at least one response is required", ep.Name)
		}

		defaults := 0
		for j, resp := range ep.Responses {
			if resp.Default {
				defaults++
			}
			if resp.Status < 100 || resp.Status >= 600 {
				return fmt.Errorf("endpoint %q response[%d]: status %d out of range [100, 600)", ep.Name, j, resp.Status)
			}
			if resp.Probability != nil && (*resp.Probability < 0 || *resp.Probability > 1) {
				return fmt.Errorf("endpoint %q response[%d]: probability %f out of range [0,1]", ep.Name, j, *resp.Probability)
			}
			if resp.Delay != "" {
				if _, _, err := ParseDelay(resp.Delay); err != nil {
					return fmt.Errorf("endpoint %q response[%d]: %w", ep.Name, j, err)
				}
			}
		}
		if defaults > 1 {
			return fmt.Errorf("endpoint %q: at most one response may be marked default, found %d", ep.Name, defaults)
		}
	}
	return nil
}

// ParseDelay parses a fixed ("Nms"/"Ns") or range ("Aunit-Bunit") delay
// spec into millisecond bounds. A fixed delay returns min == max.
func ParseDelay(spec string) (min, max float64, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, fmt.Errorf("empty delay")
	}

	if idx := strings.IndexByte(spec, '-'); idx > 0 {
		loPart, hiPart := spec[:idx], spec[idx+1:]
		lo, loErr := parseDuration(loPart)
		hi, hiErr := parseDuration(hiPart)
		if loErr != nil || hiErr != nil {
			return 0, 0, fmt.Errorf("invalid delay range %q", spec)
		}
		if lo > hi {
			return 0, 0, fmt.Errorf("invalid delay range %q: min greater than max", spec)
		}
		return lo, hi, nil
	}

	v, err := parseDuration(spec)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delay %q: %w", spec, err)
	}
	return v, v, nil
}

// FormatDelay renders a fixed millisecond duration back into canonical
// "Nms" form, the inverse of ParseDelay for the no-range case.
func FormatDelay(ms float64) string {
	return strconv.FormatFloat(ms, 'g', -1, 64) + "ms"
}

// parseDuration accepts "Nms" or "Ns" and returns the value in milliseconds.
func parseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "ms"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
		if err != nil {
			return 0, err
		}
		return v, nil
	case strings.HasSuffix(s, "s"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
		if err != nil {
			return 0, err
		}
		return v * 1000, nil
	default:
		return 0, fmt.Errorf("unrecognized duration unit in %q", s)
	}
}
