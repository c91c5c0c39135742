// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads condense configuration.
//
// Precedence is defaults, then the YAML file (strict: unknown keys fail), then
// CONDENSE_* environment variables. Holder keeps the active configuration and
// reloads it when the file changes.
package config
