package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AntoinePinto/docu-talk/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

const (
	defaultSecretsPath = "secret/data/docu-talk"
	secretCacheTTL     = 5 * time.Minute
)

// VaultManager resolves secrets from HashiCorp Vault with an environment
// variable fallback. With VAULT_ENABLED unset or false it serves straight
// from the environment, which is how local development runs.
type VaultManager struct {
	client  *vault.Client
	path    string
	enabled bool
	log     *logger.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewVaultManager configures a manager from VAULT_* environment variables.
func NewVaultManager(log *logger.Logger) (*VaultManager, error) {
	m := &VaultManager{
		path:  os.Getenv("VAULT_SECRETS_PATH"),
		log:   log,
		cache: make(map[string]string),
	}
	if m.path == "" {
		m.path = defaultSecretsPath
	}

	switch os.Getenv("VAULT_ENABLED") {
	case "true", "1", "yes":
		m.enabled = true
	default:
		return m, nil
	}

	addr := os.Getenv("VAULT_ADDR")
	token := os.Getenv("VAULT_TOKEN")
	if addr == "" {
		return nil, ErrNoVaultAddress
	}
	if token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = addr
	vaultConfig.Timeout = 10 * time.Second
	vaultConfig.MaxRetries = 3

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(token)
	if ns := os.Getenv("VAULT_NAMESPACE"); ns != "" {
		client.SetNamespace(ns)
	}
	m.client = client

	go m.expireCache()
	return m, nil
}

// GetSecret resolves key from Vault, falling back to the environment when
// Vault is disabled or does not hold the key.
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if !m.enabled {
		return m.fromEnvironment(key)
	}

	value, err := m.fromVault(ctx, key)
	if errors.Is(err, ErrSecretNotFound) {
		m.log.Warn("Secret not in Vault, falling back to environment", "key", key)
		return m.fromEnvironment(key)
	}
	if err != nil {
		return "", err
	}

	m.store(key, value)
	return value, nil
}

// GetSecretWithDefault resolves key or returns defaultValue.
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (m *VaultManager) fromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2("secret").Get(ctx, m.path)
	if err != nil {
		return "", fmt.Errorf("read secret at %s: %w", m.path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", ErrSecretNotFound
	}
	value, ok := data[key].(string)
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (m *VaultManager) fromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}
	m.store(key, value)
	return value, nil
}

func (m *VaultManager) store(key, value string) {
	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()
}

// expireCache drops everything periodically so rotations are picked up.
func (m *VaultManager) expireCache() {
	ticker := time.NewTicker(secretCacheTTL)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		m.cache = make(map[string]string)
		m.mu.Unlock()
	}
}
