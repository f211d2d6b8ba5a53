package core

import "testing"

func TestValidateStruct(t *testing.T) {
	type form struct {
		Username string `json:"username" validate:"notblank,username"`
		Password string `json:"password" validate:"required"`
	}

	tests := []struct {
		name       string
		form       form
		msg        string
		wantErr    bool
		wantFields map[string]string
		wantMsg    string
	}{
		{name: "valid", form: form{Username: "ST1001", Password: "pwd"}},
		{
			name:       "blank username",
			form:       form{Username: "  ", Password: "pwd"},
			wantErr:    true,
			wantFields: map[string]string{"username": notBlankText},
			wantMsg:    "username: " + notBlankText,
		},
		{
			name:       "bad username & missing password",
			form:       form{Username: "st 1001"},
			msg:        "Please enter both username and password",
			wantErr:    true,
			wantFields: map[string]string{"username": usernameText, "password": requiredText},
			wantMsg:    "Please enter both username and password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.form, tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			valErr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("ValidateStruct() error = %T, want *ValidationError", err)
			}
			if valErr.Error() != tt.wantMsg {
				t.Errorf("ValidateStruct() message = %q, want %q", valErr.Error(), tt.wantMsg)
			}
			if len(valErr.Fields) != len(tt.wantFields) {
				t.Fatalf("ValidateStruct() fields = %v, want %v", valErr.Fields, tt.wantFields)
			}
			for _, fld := range valErr.Fields {
				if want := tt.wantFields[fld.Field]; fld.Error != want {
					t.Errorf("ValidateStruct() field %s = %q, want %q", fld.Field, fld.Error, want)
				}
			}
		})
	}
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "trim", s: "  ST1001 \n", want: "ST1001"},
		{name: "trim & lower", s: " ST1001 ", lower: true, want: "st1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanString(tt.s, tt.lower); got != tt.want {
				t.Errorf("CleanString() = %q, want %q", got, tt.want)
			}
		})
	}
}
