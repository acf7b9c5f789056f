package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"vitality/internal/domain/member"
)

func TestDescribeForward(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"timeout", fmt.Errorf("op: %w: %w", ErrTimeout, context.DeadlineExceeded), 408, MsgTimeout},
		{"unreachable", fmt.Errorf("op: %w", ErrUnreachable), 503, MsgUnreachable},
		{"not found", &StatusError{Op: "x", Status: 404, Detail: "Not Found"}, 500, MsgEndpointNotFound},
		{"unprocessable", &StatusError{Op: "x", Status: 422, Detail: "bad column"}, 422, "bad column"},
		{"other status", &StatusError{Op: "x", Status: 502, Detail: "gateway down"}, 502, "gateway down"},
		{"empty", ErrEmptyBody, 500, MsgEmptyResponse},
		{"invalid json", &InvalidJSONError{Op: "x", Snippet: "<html>"}, 500, "Invalid CSV response format. Expected JSON but received: <html>..."},
		{"shape", &member.DecodeError{Got: "string"}, 500, "Invalid response format: expected array of members"},
		{"unknown", errors.New("boom"), 500, MsgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeForward(tt.err)
			if got.Status != tt.wantStatus || got.Message != tt.wantMsg {
				t.Errorf("DescribeForward = %+v, want {%d %q}", got, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestDescribeAssign(t *testing.T) {
	got := DescribeAssign(&StatusError{Op: "x", Status: 422, Detail: "bad column"})
	if got.Status != 422 || got.Message != MsgInvalidCSV {
		t.Errorf("422 = %+v", got)
	}
	got = DescribeAssign(&StatusError{Op: "x", Status: 404})
	if got.Status != 500 || got.Message != MsgEndpointNotFound {
		t.Errorf("404 = %+v", got)
	}
}

func TestDescribeGenerate(t *testing.T) {
	if got := DescribeGenerate(fmt.Errorf("%w", ErrTimeout)); got.Status != http.StatusRequestTimeout || got.Message != MsgGenerateTimeout {
		t.Errorf("timeout = %+v", got)
	}
	if got := DescribeGenerate(&StatusError{Status: 500, Detail: "model crashed"}); got.Status != 500 || got.Message != "model crashed" {
		t.Errorf("status = %+v", got)
	}
	if got := DescribeGenerate(fmt.Errorf("%w", ErrUnreachable)); got.Status != 503 {
		t.Errorf("unreachable = %+v", got)
	}
}
