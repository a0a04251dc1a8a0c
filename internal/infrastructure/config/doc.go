// Package config handles loading and validating Doorkeeper Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (DOORKEEPER_*), optionally from a .env file
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret and password salt have no defaults and must be supplied
//   - Sensitive values (passwords, API keys, VAPID keys) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
