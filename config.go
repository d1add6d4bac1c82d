package armor

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// configFile is the top-level JSON structure.
	configFile struct {
		Clients map[string]ClientConfig `json:"clients"`
	}

	// ClientConfig holds the decoded configuration for one named HTTP
	// dependency: transport-level settings plus the optional resilience
	// policies. Export it to embed in your own app config structs for JSON
	// or YAML unmarshaling, then call [BuildOptions] (or [NewClient]) to
	// turn it into a pipeline.
	ClientConfig struct {
		// BaseEndpoint is the URL relative request paths resolve against.
		// Optional; without it every request must carry an absolute URL.
		BaseEndpoint string `json:"base_endpoint,omitempty" yaml:"base_endpoint,omitempty"`
		// RequestTimeout bounds each transport call, including reading the
		// response body. Optional. Parsed via time.ParseDuration. Example:
		// "30s".
		RequestTimeout *string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
		// DisableCookies turns off the client cookie jar.
		// Optional. Default false (cookies enabled).
		DisableCookies bool `json:"disable_cookies,omitempty" yaml:"disable_cookies,omitempty"`
		// Retry configures the retry policy.
		// Optional. Example: {"is_used": true, "retry_count": 3}.
		Retry *RetryPolicyConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
		// TimeoutPerTry configures the per-attempt deadline.
		// Optional. Example: {"is_used": true, "timeout_per_try": "2s"}.
		TimeoutPerTry *TimeoutPerTryPolicyConfig `json:"timeout_per_try,omitempty" yaml:"timeout_per_try,omitempty"`
		// Bulkhead configures the concurrency cap.
		// Optional. Example: {"is_used": true, "max_parallelization": 10}.
		Bulkhead *BulkheadPolicyConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
		// Throttling configures fixed-window admission control.
		// Optional. Example:
		// {"is_used": true, "requests_limit": 100, "window": "1s",
		// "queue_limit": 20}.
		Throttling *ThrottlingPolicyConfig `json:"throttling,omitempty" yaml:"throttling,omitempty"`
	}

	// RetryPolicyConfig holds retry policy values. The policy is active only
	// when IsUsed is true and RetryCount is positive.
	RetryPolicyConfig struct {
		IsUsed bool `json:"is_used" yaml:"is_used"`
		// RetryCount is the number of retries after the initial attempt.
		// Required when used. Example: 3.
		RetryCount *int `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
		// RetryIntervalSeconds is the fixed wait between attempts.
		// Optional. Default 1.
		RetryIntervalSeconds *int `json:"retry_interval_seconds,omitempty" yaml:"retry_interval_seconds,omitempty"`
		// AdditionalStatusCodes are retryable statuses on top of 5xx/408.
		// Optional. Example: [429].
		AdditionalStatusCodes []int `json:"additional_status_codes,omitempty" yaml:"additional_status_codes,omitempty"`
		// RetryAllMethods extends retry eligibility beyond GET.
		// Optional. Default false.
		RetryAllMethods bool `json:"retry_all_methods,omitempty" yaml:"retry_all_methods,omitempty"`
	}

	// TimeoutPerTryPolicyConfig holds the per-attempt deadline. The policy
	// is active only when IsUsed is true and the duration is positive.
	TimeoutPerTryPolicyConfig struct {
		IsUsed bool `json:"is_used" yaml:"is_used"`
		// TimeoutPerTry is parsed via time.ParseDuration. Example: "2s".
		TimeoutPerTry *string `json:"timeout_per_try,omitempty" yaml:"timeout_per_try,omitempty"`
	}

	// BulkheadPolicyConfig holds the concurrency cap. The policy is active
	// only when IsUsed is true and MaxParallelization is positive.
	BulkheadPolicyConfig struct {
		IsUsed bool `json:"is_used" yaml:"is_used"`
		// MaxParallelization is the number of simultaneous in-flight calls.
		// Required when used. Example: 10.
		MaxParallelization *int `json:"max_parallelization,omitempty" yaml:"max_parallelization,omitempty"`
	}

	// ThrottlingPolicyConfig holds fixed-window admission control values.
	ThrottlingPolicyConfig struct {
		IsUsed bool `json:"is_used" yaml:"is_used"`
		// RequestsLimit is the number of permits per window.
		// Required when used. Example: 100.
		RequestsLimit int `json:"requests_limit,omitempty" yaml:"requests_limit,omitempty"`
		// Window is parsed via time.ParseDuration. Required when used.
		// Example: "1s".
		Window *string `json:"window,omitempty" yaml:"window,omitempty"`
		// QueueLimit is the number of requests allowed to wait for the next
		// window before rejections start. Optional. Default 0.
		QueueLimit int `json:"queue_limit,omitempty" yaml:"queue_limit,omitempty"`
	}
)

// LoadConfig reads a JSON configuration file and stores the per-dependency
// configurations in a [Registry]. Actual [Client] instances are not created
// until [GetClient] is called, allowing the caller to provide additional
// code-level options (tracer, hooks, clock).
//
// Duration values (request_timeout, timeout_per_try, window) are parsed
// using [time.ParseDuration]. All configurations are validated eagerly so
// errors surface at load time.
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("armor: read config: %w", err)
	}

	var cfg configFile
	if err = json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("armor: parse config: %w", err)
	}

	for name, cc := range cfg.Clients {
		if _, buildErr := BuildOptions(&cc); buildErr != nil {
			return nil, fmt.Errorf("armor: client %q: %w", name, buildErr)
		}

		if _, tErr := parseRequestTimeout(&cc); tErr != nil {
			return nil, fmt.Errorf("armor: client %q: %w", name, tErr)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.configs = cfg.Clients
	reg.mu.Unlock()

	return reg, nil
}

// BuildOptions converts a [ClientConfig]'s policy sections into functional
// options for [NewPipeline]. Transport-level fields (base_endpoint,
// request_timeout, disable_cookies) are handled by [NewClient], not here.
// Policies with is_used false are skipped entirely.
func BuildOptions(cc *ClientConfig) ([]Option, error) {
	var opts []Option

	if rc := cc.Retry; rc != nil && rc.IsUsed {
		if rc.RetryCount == nil {
			return nil, fmt.Errorf("retry: retry_count is required")
		}

		if *rc.RetryCount <= 0 {
			return nil, fmt.Errorf("retry: retry_count must be > 0, got %d", *rc.RetryCount)
		}

		intervalSeconds := 1
		if rc.RetryIntervalSeconds != nil {
			intervalSeconds = *rc.RetryIntervalSeconds
			if intervalSeconds <= 0 {
				return nil, fmt.Errorf(
					"retry: retry_interval_seconds must be > 0, got %d",
					intervalSeconds,
				)
			}
		}

		var retryOpts []RetryOption
		if len(rc.AdditionalStatusCodes) > 0 {
			retryOpts = append(retryOpts, AdditionalStatusCodes(rc.AdditionalStatusCodes...))
		}

		if rc.RetryAllMethods {
			retryOpts = append(retryOpts, RetryAllMethods())
		}

		opts = append(opts, WithRetry(
			*rc.RetryCount,
			time.Duration(intervalSeconds)*time.Second,
			retryOpts...,
		))
	}

	if tc := cc.TimeoutPerTry; tc != nil && tc.IsUsed {
		if tc.TimeoutPerTry == nil {
			return nil, fmt.Errorf("timeout_per_try: timeout_per_try is required")
		}

		d, err := time.ParseDuration(*tc.TimeoutPerTry)
		if err != nil {
			return nil, fmt.Errorf("timeout_per_try: %w", err)
		}

		if d < 0 {
			return nil, fmt.Errorf("timeout_per_try: must be >= 0, got %v", d)
		}

		// Zero means the policy is configured but inactive.
		if d > 0 {
			opts = append(opts, WithTimeoutPerTry(d))
		}
	}

	if bc := cc.Bulkhead; bc != nil && bc.IsUsed {
		if bc.MaxParallelization == nil {
			return nil, fmt.Errorf("bulkhead: max_parallelization is required")
		}

		if *bc.MaxParallelization <= 0 {
			return nil, fmt.Errorf(
				"bulkhead: max_parallelization must be > 0, got %d",
				*bc.MaxParallelization,
			)
		}

		opts = append(opts, WithBulkhead(*bc.MaxParallelization))
	}

	if thc := cc.Throttling; thc != nil && thc.IsUsed {
		if thc.RequestsLimit <= 0 {
			return nil, fmt.Errorf(
				"throttling: requests_limit must be > 0, got %d",
				thc.RequestsLimit,
			)
		}

		if thc.Window == nil {
			return nil, fmt.Errorf("throttling: window is required")
		}

		window, err := time.ParseDuration(*thc.Window)
		if err != nil {
			return nil, fmt.Errorf("throttling: window: %w", err)
		}

		if window <= 0 {
			return nil, fmt.Errorf("throttling: window must be > 0, got %v", window)
		}

		if thc.QueueLimit < 0 {
			return nil, fmt.Errorf(
				"throttling: queue_limit must be >= 0, got %d",
				thc.QueueLimit,
			)
		}

		opts = append(opts, WithThrottle(thc.RequestsLimit, window, thc.QueueLimit))
	}

	return opts, nil
}

// parseRequestTimeout validates and parses the transport-level timeout.
func parseRequestTimeout(cc *ClientConfig) (time.Duration, error) {
	if cc.RequestTimeout == nil {
		return 0, nil
	}

	d, err := time.ParseDuration(*cc.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request_timeout: %w", err)
	}

	if d < 0 {
		return 0, fmt.Errorf("request_timeout: must be >= 0, got %v", d)
	}

	return d, nil
}

// GetClient retrieves a named dependency configuration from a config-loaded
// [Registry] and returns a [Client] ready for use. If the name is not found
// in the stored configs, a bare client is created with only the provided
// opts.
//
// Additional options are applied after config options, so they take
// precedence (e.g. adding a tracer, hooks, or a custom transport).
func GetClient(reg *Registry, name string, opts ...Option) (*Client, error) {
	cfg, _ := reg.config(name)

	allOpts := make([]Option, 0, len(opts)+1)
	allOpts = append(allOpts, WithRegistry(reg))
	allOpts = append(allOpts, opts...)

	return NewClient(name, cfg, allOpts...)
}
