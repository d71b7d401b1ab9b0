package a2a

// AgentCapabilities describes the optional protocol features an agent offers.
type AgentCapabilities struct {
	// Streaming indicates support for tasks/sendSubscribe and tasks/resubscribe
	Streaming bool `json:"streaming,omitempty"`
	// PushNotifications indicates support for the tasks/pushNotification methods
	PushNotifications bool `json:"pushNotifications,omitempty"`
	// StateTransitionHistory indicates the agent keeps message history per task
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

// AgentProvider represents the organization behind an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentSkill is one thing the agent can be asked to do.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

/*
AgentCard is the self-description an agent serves at
/.well-known/agent.json so clients can discover its endpoint and features.
*/
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	URL                string            `json:"url"`
	Provider           *AgentProvider    `json:"provider,omitempty"`
	Version            string            `json:"version"`
	DocumentationURL   string            `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill      `json:"skills"`
}

/*
NewAgentCard describes a runtime reachable at url. Streaming and history are
always on; push notifications are never offered.
*/
func NewAgentCard(name, version, url string, skills ...AgentSkill) *AgentCard {
	if skills == nil {
		skills = []AgentSkill{}
	}

	return &AgentCard{
		Name:    name,
		URL:     url,
		Version: version,
		Capabilities: AgentCapabilities{
			Streaming:              true,
			StateTransitionHistory: true,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills:             skills,
	}
}
