package secrets

import (
	"context"
	"errors"
	"sync"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// ErrManagerNotInitialized is returned by GetSecret before Init has run.
var ErrManagerNotInitialized = errors.New("secrets manager not initialized")

// Manager resolves secrets by key.
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

var (
	defaultManager Manager
	initOnce       sync.Once
)

// Init wires the package-level manager to Vault. Safe to call once at
// startup; a failure leaves the package serving defaults only.
func Init(log *logger.Logger) error {
	var err error
	initOnce.Do(func() {
		m, initErr := NewVaultManager(log)
		if initErr != nil {
			err = initErr
			return
		}
		defaultManager = m
	})
	return err
}

// GetSecret resolves key through the default manager.
func GetSecret(ctx context.Context, key string) (string, error) {
	if defaultManager == nil {
		return "", ErrManagerNotInitialized
	}
	return defaultManager.GetSecret(ctx, key)
}

// GetSecretWithDefault resolves key or returns defaultValue, including when
// Init has never run.
func GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if defaultManager == nil {
		return defaultValue
	}
	return defaultManager.GetSecretWithDefault(ctx, key, defaultValue)
}

// SetManager swaps the default manager, used by tests.
func SetManager(m Manager) {
	defaultManager = m
}
