/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package toolcall holds the provider-independent description of tools an
// agent exposes to a model, and of the calls the model makes back.
//
// A Definition is declared once and rendered per provider from its JSON
// schema:
//
//	def := toolcall.Definition{
//		Name:        "get_issue_details",
//		Description: "Get details of a GitHub issue",
//		Parameters: []toolcall.Parameter{
//			{Name: "owner", Type: "string", Description: "The owner of the repository.", Required: true},
//		},
//	}
//	schema, err := def.SchemaMap()
//
// Handlers read arguments with Param, which records malformed calls on the
// run trace and returns the error map to feed back to the model.
package toolcall
