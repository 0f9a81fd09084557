// Package initcmd implements the init command package: it creates a project
// in the working directory from a template package fetched through the
// package cache.
package initcmd
