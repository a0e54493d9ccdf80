package main

// General API documentation for swaggo. Regenerate docs/ with `swag init`.
//
// @title           llmrun diagnostics API
// @version         1.0
// @description     Read-only diagnostics for the local single-turn completion runner.
//
// @contact.name   llmrun maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
