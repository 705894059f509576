// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Title    string `validate:"required,max=10"`
	Priority int64  `validate:"min=0,max=6"`
	Kind     string `validate:"omitempty,oneof=event manual"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{Title: "News", Priority: 2, Kind: "event"}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("ValidateStruct = %v, want nil", err)
	}
}

func TestValidateStructSingleError(t *testing.T) {
	req := sampleRequest{Title: "", Priority: 2}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected error for missing title")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Title is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "Title" {
		t.Errorf("details = %v", apiErr.Details)
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := sampleRequest{Title: "much too long for this", Priority: 9, Kind: "nope"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected errors")
	}
	if len(err.Errors()) != 3 {
		t.Fatalf("errors = %d, want 3: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("multiple errors should list fields, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "must be at most 10 characters") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Message, "must be one of") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestGetValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("validator instance is not reused")
	}
}
