// Package registry holds the named workers available to a delegation controller.
package registry
