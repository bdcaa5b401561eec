// Package project summarizes a source tree: which languages it is written
// in, which build manifests it carries and the state of its git checkout.
//
// The walk honors ignore files and is bounded by depth and entry count, so
// analyzing a large monorepo returns a partial but useful answer quickly.
package project
