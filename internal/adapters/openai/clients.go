// Package openai hands out chat-completion clients keyed by tenant API key.
package openai

import (
	"sync"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/HugoGarcez/agentpromp-sub000/internal/orchestrator"
)

// ClientManager caches one client per API key so per-message traffic does not
// rebuild HTTP transports.
type ClientManager struct {
	mu         sync.RWMutex
	clients    map[string]*goopenai.Client
	defaultKey string
}

func NewClientManager(defaultKey string) *ClientManager {
	return &ClientManager{
		clients:    make(map[string]*goopenai.Client),
		defaultKey: defaultKey,
	}
}

// ClientFor returns the cached client for apiKey, creating it on first use.
// An empty key falls back to the service-wide default key.
func (m *ClientManager) ClientFor(apiKey string) orchestrator.ChatCompleter {
	if apiKey == "" {
		apiKey = m.defaultKey
	}

	m.mu.RLock()
	client, ok := m.clients[apiKey]
	m.mu.RUnlock()
	if ok {
		return client
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok = m.clients[apiKey]; ok {
		return client
	}
	client = goopenai.NewClient(apiKey)
	m.clients[apiKey] = client
	return client
}
