// Package hcl implements the config.Loader and config.Converter interfaces
// on top of hashicorp/hcl. It discovers .hcl files under the pipeline and
// modules paths, decodes runner/asset manifests and stage/resource blocks,
// and binds evaluated cty values onto module input structs.
package hcl
