package podbridge

import (
	"errors"

	"github.com/jpalmerr/podbridge/internal/coordinator"
)

// withPublisher adds a publisher alongside the built-in ones.
func withPublisher(p coordinator.Publisher) Option {
	return func(cfg *bridgeConfig) error {
		if p == nil {
			return errors.New("publisher cannot be nil")
		}
		cfg.publishers = append(cfg.publishers, p)
		return nil
	}
}
