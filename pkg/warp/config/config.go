package config

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/pkg/warp/client"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/objects"
	yaml "gopkg.in/yaml.v2"
)

// Options configures the connection to a Warp server
type Options struct {
	APIKey       string `yaml:"apiKey"`
	MasterKey    string `yaml:"masterKey"`
	ServerURL    string `yaml:"serverURL"`
	SessionToken string `yaml:"sessionToken"`
	Timeout      string `yaml:"timeout"`
	MaxRequests  int64  `yaml:"maxRequests"`
	Platform     string `yaml:"platform"`
	Debug        bool   `yaml:"debug"`
}

func Load(ctx context.Context, data io.Reader) (*Options, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	opts := &Options{}
	err = yaml.Unmarshal(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warp configuration: %w", err)
	}

	logging.GetFromContext(ctx).Debug("loaded warp configuration", "serverURL", opts.ServerURL)

	return opts, nil
}

// ApplyEnvironment lets WARP_* environment variables override loaded values
func (o *Options) ApplyEnvironment(ctx context.Context) *Options {
	o.APIKey = env.GetVariableOrDefault(ctx, "WARP_API_KEY", o.APIKey)
	o.MasterKey = env.GetVariableOrDefault(ctx, "WARP_MASTER_KEY", o.MasterKey)
	o.ServerURL = env.GetVariableOrDefault(ctx, "WARP_SERVER_URL", o.ServerURL)
	o.SessionToken = env.GetVariableOrDefault(ctx, "WARP_SESSION_TOKEN", o.SessionToken)
	o.Platform = env.GetVariableOrDefault(ctx, "WARP_PLATFORM", o.Platform)

	return o
}

func (o *Options) Validate() error {
	if o.APIKey == "" {
		return errors.NewMissingConfigurationError("missing apiKey for Warp client")
	}

	if o.ServerURL == "" {
		return errors.NewMissingConfigurationError("missing serverURL for Warp client")
	}

	if o.Timeout != "" {
		if _, err := time.ParseDuration(o.Timeout); err != nil {
			return errors.NewMissingConfigurationError(fmt.Sprintf("invalid timeout %q", o.Timeout))
		}
	}

	return nil
}

func (o *Options) ClientOptions() []client.ClientOption {
	options := []client.ClientOption{
		client.APIKey(o.APIKey),
		client.Debug(strconv.FormatBool(o.Debug)),
	}

	if o.MasterKey != "" {
		options = append(options, client.MasterKey(o.MasterKey))
	}

	if o.SessionToken != "" {
		options = append(options, client.SessionToken(o.SessionToken))
	}

	if o.Platform != "" {
		options = append(options, client.Platform(o.Platform))
	}

	if timeout, err := time.ParseDuration(o.Timeout); err == nil && timeout > 0 {
		options = append(options, client.Timeout(timeout))
	}

	if o.MaxRequests > 0 {
		options = append(options, client.MaxRequests(o.MaxRequests))
	}

	return options
}

// NewWarp validates the options and returns an object context that talks to the configured server
func NewWarp(ctx context.Context, o *Options) (*objects.Warp, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	c := client.New(o.ServerURL, o.ClientOptions()...)

	logging.GetFromContext(ctx).Info("warp client configured", "serverURL", o.ServerURL, "debug", o.Debug)

	return objects.NewWarp(c), nil
}
