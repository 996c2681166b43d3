package validator

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-ems/internal/model"
)

func intPtr(v int) *int { return &v }

func TestStructQuestionRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       model.QuestionRequest
		wantField string
	}{
		{
			name: "valid",
			req:  model.QuestionRequest{Text: "2+2?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: intPtr(3), Category: "math"},
		},
		{
			name:      "three options",
			req:       model.QuestionRequest{Text: "2+2?", Options: []string{"1", "2", "4"}, CorrectAnswer: intPtr(2), Category: "math"},
			wantField: "options",
		},
		{
			name:      "correct answer out of range",
			req:       model.QuestionRequest{Text: "2+2?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: intPtr(4), Category: "math"},
			wantField: "correct_answer",
		},
		{
			name:      "missing correct answer",
			req:       model.QuestionRequest{Text: "2+2?", Options: []string{"1", "2", "3", "4"}, Category: "math"},
			wantField: "correct_answer",
		},
		{
			name:      "empty text",
			req:       model.QuestionRequest{Options: []string{"1", "2", "3", "4"}, CorrectAnswer: intPtr(0), Category: "math"},
			wantField: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want *ValidationError", err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Errorf("fields = %v, want an entry for %q", ve.Fields, tt.wantField)
			}
		})
	}
}

func TestStructRegisterRequest(t *testing.T) {
	req := model.RegisterRequest{
		Username:        "newbie",
		FullName:        "New Bie",
		Password:        "secret1",
		ConfirmPassword: "secret2",
		Role:            model.RoleStudent,
	}
	var ve *ValidationError
	if err := Struct(req); !errors.As(err, &ve) {
		t.Fatalf("mismatched confirmation accepted: %v", err)
	}
	if _, ok := ve.Fields["confirm_password"]; !ok {
		t.Errorf("fields = %v", ve.Fields)
	}

	req.ConfirmPassword = req.Password
	req.Role = "admin"
	if err := Struct(req); err == nil {
		t.Error("unknown role accepted")
	}

	req.Role = model.RoleTeacher
	if err := Struct(req); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}
