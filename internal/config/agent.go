package config

import (
	"errors"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "COVENANT_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "COVENANT_AGENT_BASE_URL"
	EnvAgentModelName    = "COVENANT_AGENT_MODEL_NAME"
	EnvAgentToken        = "COVENANT_AGENT_TOKEN"
	EnvAgentDeployment   = "COVENANT_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "COVENANT_AGENT_API_VERSION"
	EnvAgentAuthType     = "COVENANT_AGENT_AUTH_TYPE"
)

// agentOptions maps provider option keys to the variables that set them.
var agentOptions = map[string]string{
	"token":       EnvAgentToken,
	"deployment":  EnvAgentDeployment,
	"api_version": EnvAgentAPIVersion,
	"auth_type":   EnvAgentAuthType,
}

// FinalizeAgent layers the configured agent over the go-agents defaults,
// applies environment overrides, and checks that a provider and model remain.
// It only runs when the capability provider is the LLM agent.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	merged := gaconfig.DefaultAgentConfig()
	merged.Merge(c)
	*c = merged

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}

	envString(&c.Provider.Name, EnvAgentProviderName)
	envString(&c.Provider.BaseURL, EnvAgentBaseURL)
	envString(&c.Model.Name, EnvAgentModelName)

	for key, env := range agentOptions {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if c.Provider.Options == nil {
			c.Provider.Options = make(map[string]any)
		}
		c.Provider.Options[key] = v
	}

	switch {
	case c.Name == "":
		return errors.New("name required")
	case c.Provider.Name == "":
		return errors.New("provider name required")
	case c.Model.Name == "":
		return errors.New("model name required")
	}
	return nil
}
