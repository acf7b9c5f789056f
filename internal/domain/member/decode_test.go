package member_test

import (
	"errors"
	"testing"

	"vitality/internal/domain/member"
)

// TestDecodeList covers every accepted and rejected body shape.
func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		keys    []string
		wantLen int
		wantErr bool
	}{
		{"bare array", `[{"MemberID":1},{"MemberID":2}]`, nil, 2, false},
		{"members wrapper", `{"members":[{"MemberID":1}]}`, []string{member.KeyMembers}, 1, false},
		{"data preferred over members", `{"data":[{"MemberID":1}],"members":[]}`, []string{member.KeyData, member.KeyMembers}, 1, false},
		{"falls through to members", `{"data":"x","members":[{"MemberID":1},{"MemberID":2}]}`, []string{member.KeyData, member.KeyMembers}, 2, false},
		{"empty array", `  []  `, nil, 0, false},
		{"object without key", `{"rows":[]}`, []string{member.KeyMembers}, 0, true},
		{"key not searched", `{"data":[]}`, []string{member.KeyMembers}, 0, true},
		{"string", `"nope"`, nil, 0, true},
		{"empty", ``, nil, 0, true},
		{"html", `<html>`, nil, 0, true},
		{"bad element", `[{"MemberID":{}}]`, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := member.DecodeList[member.WithPlans]([]byte(tt.body), tt.keys...)
			if tt.wantErr {
				var de *member.DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("error = %v, want *DecodeError", err)
				}
				if de.Error() != "Invalid response format: expected array of members" {
					t.Errorf("message = %q", de.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if list == nil || len(list) != tt.wantLen {
				t.Errorf("len = %d, want %d (nil=%v)", len(list), tt.wantLen, list == nil)
			}
		})
	}
}
