package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *Config) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithIpfsURL sets the internal ipfs gateway that public gateways are rewritten to
func WithIpfsURL(ipfsURL string) Option {
	return func(c *Config) error {
		c.IpfsURL = ipfsURL
		return nil
	}
}

// WithGateway sets the blockchain gateway and elastic index urls
func WithGateway(gatewayURL, elasticURL string) Option {
	return func(c *Config) error {
		c.GatewayURL = gatewayURL
		c.ElasticURL = elasticURL
		return nil
	}
}

// WithMaxRetries sets the processing retry ceiling
func WithMaxRetries(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("max retries must be positive, got %d", n)
		}
		c.NftProcessMaxRetries = n
		return nil
	}
}

// WithCache sets the cache url, "memory://" or "redis://..."
func WithCache(cacheURL string) Option {
	return func(c *Config) error {
		c.CacheURL = cacheURL
		return nil
	}
}

// WithStorage sets the thumbnail storage url
func WithStorage(storageURL string) Option {
	return func(c *Config) error {
		c.StorageURL = storageURL
		return nil
	}
}

// WithDatabase sets the database url, "memory" or "postgres://..."
func WithDatabase(databaseURL string) Option {
	return func(c *Config) error {
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithAMQP enables the queue consumer
func WithAMQP(amqpURL, queue string) Option {
	return func(c *Config) error {
		if amqpURL == "" {
			return fmt.Errorf("amqp url cannot be empty")
		}
		c.AMQP.URL = amqpURL
		if queue != "" {
			c.AMQP.Queue = queue
		}
		return nil
	}
}
