/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder assembles model prompts from constant templates and
// encoded data.
//
// Templates are string constants with {{name}} placeholders. Runtime values
// such as issue text, file paths and retrieved code are bound through an
// encoder (XML, JSON or YAML) rather than spliced in as raw strings:
//
//	p := promptbuilder.MustNewPrompt(`Files:
//	{{files}}
//
//	Issue:
//	{{issue}}`)
//	text, err := p.MustBindYAML("files", paths).
//		MustBindXML("issue", issue).
//		Build()
//
// Build fails if any placeholder is left unbound.
package promptbuilder
