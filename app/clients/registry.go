package clients

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Config defines the configuration for a notification client.
type Config struct {
	Type    string            `yaml:"type" json:"type" validate:"required"`
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Config  map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

type Registry struct {
	mu      sync.RWMutex
	clients []Interface
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make([]Interface, 0),
	}
}

func (r *Registry) Register(client Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, client)
}

func (r *Registry) GetAll() []Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Interface, len(r.clients))
	copy(result, r.clients)
	return result
}

// Notify fans the report out to every client. A failing client is logged and
// does not stop the others.
func (r *Registry) Notify(ctx context.Context, report Report) error {
	for _, client := range r.GetAll() {
		if err := client.Notify(ctx, report); err != nil {
			log.Printf("⚠️ Error notifying client %T: %v\n", client, err)
		}
	}
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		if closer, ok := client.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Printf("⚠️ Error closing client: %v\n", err)
			}
		}
	}
	r.clients = make([]Interface, 0)
}

func CreateClient(cfg Config) (Interface, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("client %s is disabled", cfg.Type)
	}

	switch cfg.Type {
	case "discord":
		return NewDiscordClientFromConfig(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown client type: %s", cfg.Type)
	}
}

// InitializeClients builds and registers every enabled client.
func (r *Registry) InitializeClients(configs []Config) error {
	for _, cfg := range configs {
		if !cfg.Enabled {
			log.Printf("⏭️ Client %s is disabled, skipping\n", cfg.Type)
			continue
		}
		client, err := CreateClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to create %s client: %w", cfg.Type, err)
		}
		r.Register(client)
		log.Printf("✅ %s client initialized\n", cfg.Type)
	}
	return nil
}
