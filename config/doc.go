// Package config defines the configuration tree consumed by the runtime and
// the overlay that retargets its agent roles onto other models.
//
// Patch is pure: it deep-copies the base tree, rewrites the model binding of
// each present role slot and the runtime knobs, and returns the copy. Load and
// LoadOverlay read YAML or JSON files through viper.
package config
