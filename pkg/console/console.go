// Package console provides the public API for embedding the RAG admin
// console core. This is the stable API for external consumers.
package console

import (
	"github.com/ragdesk/console/internal/runtime"
)

// Console is the main entry point for running the admin console core.
// See internal/runtime.Console for full documentation.
type Console = runtime.Console

// Option is a functional option for configuring a Console.
type Option = runtime.Option

// New creates a new Console with the given options.
// Example:
//
//	c, err := console.New(
//	    console.WithFileConfig("console.yaml"),
//	    console.WithSQLiteTokens("./data/console.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Backend
	WithAPIClient = runtime.WithAPIClient

	// Credential storage
	WithTokenStore   = runtime.WithTokenStore
	WithSQLiteTokens = runtime.WithSQLiteTokens
	WithMemoryTokens = runtime.WithMemoryTokens

	// Side effects
	WithNavigator = runtime.WithNavigator

	// Advanced options
	WithLogger   = runtime.WithLogger
	WithLogLevel = runtime.WithLogLevel
	WithListener = runtime.WithListener
)
