package config_test

import (
	"fmt"

	"focusbeat/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Heartbeat Interval:", cfg.Heartbeat.Interval)
	fmt.Println("Min Entity Resend:", cfg.Heartbeat.MinEntityResend)
	fmt.Println("Default Category:", cfg.Categories.Default)
	// Output:
	// Heartbeat Interval: 2m0s
	// Min Entity Resend: 2m0s
	// Default Category: coding
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	cfg.Titles.Strategy = "prepend"
	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	}

	// Output:
	// Configuration is valid
	// Invalid config: title strategy must be "ignore" or "append", got "prepend"
}
