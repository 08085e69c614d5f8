// Package config handles loading and validating AVnet Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with AVNET_* environment variables
//   - Validation of required fields
//   - Default value handling, including room timing
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Rooms.SourceSettle())
package config
